package grpcapi

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"eeg-action-service/internal/eeg"
	"eeg-action-service/internal/observability/logging"
	"eeg-action-service/internal/service/calibration"
	"eeg-action-service/internal/service/session"
	"eeg-action-service/internal/store"
)

// Orchestrator is the calibration control surface.
type Orchestrator interface {
	Start(ctx context.Context) (string, error)
	Cancel() error
	Status() calibration.Status
}

// Accounts registers and authenticates operators.
type Accounts interface {
	Register(ctx context.Context, r store.Registration) (bool, error)
	Authenticate(ctx context.Context, username, password string) (*store.User, error)
}

type Server struct {
	orchestrator Orchestrator
	accounts     Accounts
	logger       zerolog.Logger
}

// Register installs CalibrationService on g. accounts may be nil when the
// store is disabled.
func Register(g *grpc.Server, orchestrator Orchestrator, accounts Accounts) *Server {
	s := NewServer(orchestrator, accounts)
	g.RegisterService(&ServiceDesc, s)
	return s
}

// NewServer creates the service implementation.
func NewServer(orchestrator Orchestrator, accounts Accounts) *Server {
	return &Server{
		orchestrator: orchestrator,
		accounts:     accounts,
		logger:       logging.WithComponent("grpc"),
	}
}

func (s *Server) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	id, err := s.orchestrator.Start(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return structpb.NewStruct(map[string]interface{}{"sessionId": id})
}

func (s *Server) Cancel(ctx context.Context, _ *emptypb.Empty) (*emptypb.Empty, error) {
	if err := s.orchestrator.Cancel(); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(s.orchestrator.Status())
}

func (s *Server) Register(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.accounts == nil {
		return nil, status.Error(codes.Unimplemented, "account store disabled")
	}

	fields := in.GetFields()
	r := store.Registration{
		Username:               stringField(fields, "username"),
		Password:               stringField(fields, "password"),
		AccessibilityChallenge: stringField(fields, "accessibilityChallenge"),
		Height:                 stringField(fields, "height"),
		Weight:                 stringField(fields, "weight"),
		EyeColor:               stringField(fields, "eyeColor"),
		IPD:                    stringField(fields, "ipd"),
		Astigmatism:            stringField(fields, "astigmatism"),
		Disabilities:           stringField(fields, "disabilities"),
		Gender:                 stringField(fields, "gender"),
		Birthdate:              stringField(fields, "birthdate"),
	}

	ok, err := s.accounts.Register(ctx, r)
	if err != nil {
		return nil, toStatus(err)
	}
	if !ok {
		s.logger.Info().Str("username", r.Username).Msg("Registration rejected, username taken")
		return nil, status.Error(codes.AlreadyExists, "username already exists")
	}
	return structpb.NewStruct(map[string]interface{}{"registered": true})
}

func (s *Server) Authenticate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if s.accounts == nil {
		return nil, status.Error(codes.Unimplemented, "account store disabled")
	}

	fields := in.GetFields()
	u, err := s.accounts.Authenticate(ctx, stringField(fields, "username"), stringField(fields, "password"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(u)
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, eeg.ErrSessionConflict), errors.Is(err, session.ErrNoActiveSession):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, store.ErrInvalidRegistration):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, store.ErrInvalidCredentials):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, eeg.ErrModelUnavailable), errors.Is(err, eeg.ErrDeviceRead):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts v through its JSON form.
func toStruct(v interface{}) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return structpb.NewStruct(m)
}

// stringField reads a form field that may arrive as a string or a number.
func stringField(fields map[string]*structpb.Value, key string) string {
	v, ok := fields[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		return ""
	}
}
