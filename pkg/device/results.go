package device

// Results maps each executed command to its output, keeping execution order.
type Results struct {
	order   []string
	outputs map[string]string
}

func NewResults() *Results {
	return &Results{outputs: make(map[string]string)}
}

// Set records output for command. A repeated command keeps its first position
// and takes the latest output.
func (r *Results) Set(command, output string) {
	if _, ok := r.outputs[command]; !ok {
		r.order = append(r.order, command)
	}
	r.outputs[command] = output
}

func (r *Results) Get(command string) (string, bool) {
	out, ok := r.outputs[command]
	return out, ok
}

// Commands returns the executed commands in order.
func (r *Results) Commands() []string {
	return append([]string(nil), r.order...)
}

func (r *Results) Len() int { return len(r.order) }
