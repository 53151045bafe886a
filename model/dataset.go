package model

// Dataset is the immutable result of one extraction pass. It is built
// from scratch on every run and handed to the loader as a whole; nothing
// is carried over between runs except the watermark and the destination
// tables themselves.
type Dataset struct {
	Forms     []Form
	FormItems []FormItem
	Responses []Response
	Answers   []Answer
}

type SyncStats struct {
	Forms     int
	FormItems int
	Responses int
	Answers   int
}

func (ds Dataset) Stats() SyncStats {
	return SyncStats{
		Forms:     len(ds.Forms),
		FormItems: len(ds.FormItems),
		Responses: len(ds.Responses),
		Answers:   len(ds.Answers),
	}
}
