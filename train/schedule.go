package train

// LinearSchedule ramps the learning rate from 0 to Base over Warmup steps and
// then decays it linearly to 0 at Total, like transformers'
// get_linear_schedule_with_warmup.
type LinearSchedule struct {
	Base   float64
	Warmup int
	Total  int
}

// NewLinearSchedule sets warmup to int(total * warmupRatio).
func NewLinearSchedule(base float64, total int, warmupRatio float64) LinearSchedule {
	return LinearSchedule{Base: base, Warmup: int(float64(total) * warmupRatio), Total: total}
}

// Rate returns the learning rate for the given zero-based step.
func (s LinearSchedule) Rate(step int) float64 {
	if step < s.Warmup {
		return s.Base * float64(step) / float64(max(1, s.Warmup))
	}
	remaining := float64(s.Total-step) / float64(max(1, s.Total-s.Warmup))
	return s.Base * max(0, remaining)
}
