package eeg

import "math/rand/v2"

// Dataset is an ordered sequence of labeled windows.
type Dataset struct {
	Windows []Window
}

// Len returns the number of windows.
func (d Dataset) Len() int { return len(d.Windows) }

// Append concatenates other onto d, preserving order.
func (d *Dataset) Append(other Dataset) {
	d.Windows = append(d.Windows, other.Windows...)
}

// Labels returns the class of every window in order.
func (d Dataset) Labels() []Action {
	out := make([]Action, len(d.Windows))
	for i, w := range d.Windows {
		out[i] = w.Class
	}
	return out
}

// Counts returns how many windows carry each action.
func (d Dataset) Counts() map[Action]int {
	out := make(map[Action]int, NumClasses)
	for _, w := range d.Windows {
		out[w.Class]++
	}
	return out
}

// Split partitions the dataset into disjoint train and evaluation sets.
// testSize windows are drawn for evaluation after a seeded shuffle, so the
// same seed always yields the same partition. testSize is clamped to [0, Len].
func (d Dataset) Split(testSize int, seed uint64) (train, eval Dataset) {
	n := len(d.Windows)
	if testSize < 0 {
		testSize = 0
	}
	if testSize > n {
		testSize = n
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	for k, i := range idx {
		if k < testSize {
			eval.Windows = append(eval.Windows, d.Windows[i])
		} else {
			train.Windows = append(train.Windows, d.Windows[i])
		}
	}
	return train, eval
}
