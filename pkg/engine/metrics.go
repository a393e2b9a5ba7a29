package engine

// Makespan returns the end time of the latest task, 0 for an empty schedule.
func Makespan(s *Schedule) int64 {
	var max int64
	for _, t := range s.Tasks {
		if t.End > max {
			max = t.End
		}
	}
	return max
}

// MeanFlowTime returns the mean completion time across all jobs, 0 when the
// problem has no jobs.
func MeanFlowTime(p *Problem, s *Schedule) float64 {
	if len(p.Jobs) == 0 {
		return 0
	}
	var sum int64
	for ji := range p.Jobs {
		sum += s.Completion[ji]
	}
	return float64(sum) / float64(len(p.Jobs))
}

// TotalTardiness returns the summed tardiness over all jobs: for each job,
// how far its completion runs past its due date, never negative.
func TotalTardiness(p *Problem, s *Schedule) int64 {
	var sum int64
	for ji := range p.Jobs {
		if late := s.Completion[ji] - p.Jobs[ji].Due; late > 0 {
			sum += late
		}
	}
	return sum
}

// ComputeMetrics computes all KPIs of a verified schedule in one pass.
func ComputeMetrics(p *Problem, s *Schedule) *Metrics {
	m := &Metrics{
		Makespan:  Makespan(s),
		Tardiness: make(map[int]int64, len(p.Jobs)),
	}
	var completionSum int64
	for ji := range p.Jobs {
		completion := s.Completion[ji]
		completionSum += completion
		if late := completion - p.Jobs[ji].Due; late > 0 {
			m.Tardiness[ji] = late
			m.TotalTardiness += late
		}
	}
	if len(p.Jobs) > 0 {
		m.MeanFlowTime = float64(completionSum) / float64(len(p.Jobs))
	}
	return m
}
