// Package source defines the interface for electrode signal sources.
package source

import (
	"context"

	"eeg-action-service/internal/eeg"
)

// Source supplies raw electrode captures. Implementations read one block per
// call and never overlap reads.
type Source interface {
	// Read captures one WindowLength-sample block from every channel.
	// Failures and timeouts are reported as *eeg.DeviceReadError.
	Read(ctx context.Context) (eeg.Block, error)

	// Name identifies the source in logs and errors.
	Name() string

	// Close releases the device.
	Close() error
}

// ElectrodeReporter is implemented by sources that know which electrodes
// are in contact.
type ElectrodeReporter interface {
	Electrodes() [eeg.Channels]bool
}

// Electrodes returns the electrode status of src. Sources that cannot tell
// report every electrode as active.
func Electrodes(src Source) [eeg.Channels]bool {
	if r, ok := src.(ElectrodeReporter); ok {
		return r.Electrodes()
	}
	var all [eeg.Channels]bool
	for i := range all {
		all[i] = true
	}
	return all
}
