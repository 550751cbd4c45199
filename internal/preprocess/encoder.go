package preprocess

// Encoder maps text labels to dense integer codes in first-seen order.
type Encoder struct {
	codes  map[string]int
	labels []string
}

// NewEncoder returns an empty encoder.
func NewEncoder() *Encoder {
	return &Encoder{codes: make(map[string]int)}
}

// Fit assigns codes to labels not yet seen and returns the code for each value.
func (e *Encoder) Fit(values []string) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		code, ok := e.codes[v]
		if !ok {
			code = len(e.labels)
			e.codes[v] = code
			e.labels = append(e.labels, v)
		}
		out[i] = float64(code)
	}
	return out
}

// Code returns the code of a label.
func (e *Encoder) Code(label string) (int, bool) {
	c, ok := e.codes[label]
	return c, ok
}

// Label returns the label for a code.
func (e *Encoder) Label(code int) (string, bool) {
	if code < 0 || code >= len(e.labels) {
		return "", false
	}
	return e.labels[code], true
}

// Labels returns the distinct labels in code order.
func (e *Encoder) Labels() []string {
	return append([]string(nil), e.labels...)
}

// Len returns the number of distinct labels.
func (e *Encoder) Len() int { return len(e.labels) }
