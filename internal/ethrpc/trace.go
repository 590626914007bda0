package ethrpc

// FlattenLogs returns the logs of a call tree in emission order. A log's
// position is the number of subcalls made before it in the same frame.
// Frames that failed contribute nothing.
func FlattenLogs(root *CallFrame) []CallLog {
	if root == nil {
		return nil
	}
	return appendLogs(root, nil)
}

func appendLogs(f *CallFrame, out []CallLog) []CallLog {
	if f.Error != "" {
		return out
	}
	li := 0
	for i := range f.Calls {
		for li < len(f.Logs) && int(f.Logs[li].Position) <= i {
			out = append(out, f.Logs[li])
			li++
		}
		out = appendLogs(&f.Calls[i], out)
	}
	return append(out, f.Logs[li:]...)
}

// Depth is the nesting depth of a call tree; a lone frame has depth 1.
func Depth(f *CallFrame) int {
	if f == nil {
		return 0
	}
	d := 0
	for i := range f.Calls {
		if cd := Depth(&f.Calls[i]); cd > d {
			d = cd
		}
	}
	return d + 1
}
