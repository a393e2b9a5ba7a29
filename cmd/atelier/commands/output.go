package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/atelier-sched/atelier/pkg/engine"
)

// instanceSummary is the shape report of a validated instance.
type instanceSummary struct {
	Kind            string          `json:"kind"`
	Name            string          `json:"name,omitempty"`
	Jobs            int             `json:"jobs"`
	Machines        int             `json:"machines"`
	Stages          int             `json:"stages,omitempty"`
	Operations      int             `json:"operations"`
	MaxAlternatives int             `json:"max_alternatives"`
	SetupEntries    int             `json:"setup_entries"`
	Horizon         int64           `json:"horizon"`
	TimeScale       int64           `json:"time_scale"`
	Features        engine.Features `json:"features"`
}

// summarize reports the shape of a normalized problem, including the horizon
// bound the model builder would use.
func summarize(p *engine.Problem, name string) (*instanceSummary, error) {
	horizon, err := engine.Horizon(p, 0)
	if err != nil {
		return nil, err
	}

	setupEntries := 0
	if p.Setup != nil {
		setupEntries = p.Setup.Len()
	}

	return &instanceSummary{
		Kind:            string(p.Kind),
		Name:            name,
		Jobs:            p.JobCount(),
		Machines:        p.MachineCount(),
		Stages:          len(p.Stages),
		Operations:      p.TotalOperations(),
		MaxAlternatives: p.MaxAlternatives(),
		SetupEntries:    setupEntries,
		Horizon:         horizon,
		TimeScale:       p.TimeScale,
		Features:        p.Features,
	}, nil
}

// encodeJSON writes v as indented JSON.
func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeOutput sends rendered output to a file, or stdout when outFile is
// empty or "-".
func writeOutput(outFile string, data []byte) error {
	if outFile == "" || outFile == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(outFile, data, 0o644)
}

// writeResult renders a solve result as JSON or human-readable text.
func writeResult(res *engine.Result, outFile string, asJSON bool) error {
	var buf bytes.Buffer
	if asJSON {
		if err := encodeJSON(&buf, res); err != nil {
			return err
		}
	} else {
		renderResult(&buf, res)
	}
	return writeOutput(outFile, buf.Bytes())
}

// renderResult writes the human-readable view of a solve result: outcome,
// KPIs, model and solver statistics, and the schedule per machine.
func renderResult(w io.Writer, res *engine.Result) {
	fmt.Fprintf(w, "status: %s\n", res.Status)
	fmt.Fprintf(w, "model:  %d variables, %d constraints, %d intervals, horizon %d\n",
		res.Model.Variables, res.Model.Constraints, res.Model.Intervals, res.Model.Horizon)
	fmt.Fprintf(w, "solve:  %.3fs wall, %d branches, %d conflicts\n",
		res.Solve.WallSeconds, res.Solve.Branches, res.Solve.Conflicts)

	if res.Metrics != nil {
		fmt.Fprintf(w, "\nmakespan:        %d\n", res.Metrics.Makespan)
		fmt.Fprintf(w, "mean flow time:  %.2f\n", res.Metrics.MeanFlowTime)
		fmt.Fprintf(w, "total tardiness: %d\n", res.Metrics.TotalTardiness)
	}
	if res.Schedule != nil {
		renderSchedule(w, res.Schedule)
	}
}

// renderSchedule writes the per-machine task listing in start order.
func renderSchedule(w io.Writer, s *engine.Schedule) {
	machines := make([]int, 0, len(s.ByMachine))
	for m := range s.ByMachine {
		machines = append(machines, m)
	}
	sort.Ints(machines)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	for _, m := range machines {
		tasks := s.ByMachine[m]
		name := fmt.Sprintf("machine %d", m)
		if len(tasks) > 0 && tasks[0].MachineName != "" {
			name = tasks[0].MachineName
		}

		fmt.Fprintf(tw, "\n%s:\n", name)
		if len(tasks) == 0 {
			fmt.Fprintf(tw, "  (idle)\n")
			continue
		}
		for _, t := range tasks {
			fmt.Fprintf(tw, "  %d..%d\t%s\top %d\n", t.Start, t.End, t.JobName, t.Op)
		}
	}
}

// renderSummary writes the human-readable view of an instance summary.
func renderSummary(w io.Writer, s *instanceSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "kind:\t%s\n", s.Kind)
	if s.Name != "" {
		fmt.Fprintf(tw, "name:\t%s\n", s.Name)
	}
	fmt.Fprintf(tw, "jobs:\t%d\n", s.Jobs)
	fmt.Fprintf(tw, "machines:\t%d\n", s.Machines)
	if s.Stages > 0 {
		fmt.Fprintf(tw, "stages:\t%d\n", s.Stages)
	}
	fmt.Fprintf(tw, "operations:\t%d\n", s.Operations)
	fmt.Fprintf(tw, "max alternatives:\t%d\n", s.MaxAlternatives)
	if s.SetupEntries > 0 {
		fmt.Fprintf(tw, "setup entries:\t%d\n", s.SetupEntries)
	}
	fmt.Fprintf(tw, "horizon:\t%d ticks\n", s.Horizon)
	fmt.Fprintf(tw, "time scale:\t%d\n", s.TimeScale)
	fmt.Fprintf(tw, "features:\t%s\n", featureList(s.Features))
}

// renderModel writes the human-readable view of compiled model statistics.
func renderModel(w io.Writer, stats engine.ModelStats) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "variables:\t%d\n", stats.Variables)
	fmt.Fprintf(tw, "constraints:\t%d\n", stats.Constraints)
	fmt.Fprintf(tw, "intervals:\t%d\n", stats.Intervals)
	fmt.Fprintf(tw, "no-overlaps:\t%d\n", stats.NoOverlaps)
	if stats.SetupPairs > 0 {
		fmt.Fprintf(tw, "setup pairs:\t%d\n", stats.SetupPairs)
	}
	fmt.Fprintf(tw, "horizon:\t%d ticks\n", stats.Horizon)
	fmt.Fprintf(tw, "objective scale:\t%d\n", stats.ObjectiveScale)
}

// featureList names the enabled model features, "none" for a plain problem.
func featureList(f engine.Features) string {
	var names []string
	if f.Setup {
		names = append(names, "setup")
	}
	if f.Release {
		names = append(names, "release")
	}
	if f.Priorities {
		names = append(names, "priorities")
	}
	if f.MultiMachine {
		names = append(names, "multi-machine")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
