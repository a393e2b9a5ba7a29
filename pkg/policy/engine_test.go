package policy

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func testLogger() zerolog.Logger {
	return zerolog.New(nil).Level(zerolog.Disabled)
}

// modestInput is a shape no built-in policy objects to.
func modestInput() *Input {
	return &Input{
		Problem: ProblemShape{
			Kind:            "job",
			Jobs:            4,
			Machines:        3,
			Operations:      12,
			MaxAlternatives: 1,
			Horizon:         120,
			TimeScale:       1,
		},
		Budget: BudgetShape{
			TimeLimitSeconds: 30,
			Workers:          4,
		},
		Context: EvalContext{
			Operation: "solve",
			Timestamp: time.Now(),
		},
	}
}

func TestNewEngine(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if eng == nil {
		t.Fatal("Engine is nil")
	}

	policies := eng.ListPolicies()
	if len(policies) == 0 {
		t.Fatal("No built-in policies loaded")
	}

	expectedPolicies := []string{
		"instance-limits",
		"budget-limits",
		"search-space",
	}

	for _, expected := range expectedPolicies {
		found := false
		for _, p := range policies {
			if p.Name == expected {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("Expected built-in policy not found: %s", expected)
		}
	}
}

func TestEvaluate_InstanceLimits(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name            string
		mutate          func(*Input)
		expectAllowed   bool
		expectViolation bool
	}{
		{
			name:            "modest instance",
			mutate:          func(in *Input) {},
			expectAllowed:   true,
			expectViolation: false,
		},
		{
			name:            "too many jobs",
			mutate:          func(in *Input) { in.Problem.Jobs = 2001 },
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "too many operations",
			mutate:          func(in *Input) { in.Problem.Operations = 20001 },
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "too many machines",
			mutate:          func(in *Input) { in.Problem.Machines = 501 },
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "too many stages",
			mutate:          func(in *Input) { in.Problem.Stages = 101 },
			expectAllowed:   false,
			expectViolation: true,
		},
		{
			name:            "horizon too large",
			mutate:          func(in *Input) { in.Problem.Horizon = 100000001 },
			expectAllowed:   false,
			expectViolation: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := modestInput()
			tt.mutate(input)

			result, err := eng.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}

			hasViolation := len(result.Violations) > 0
			if hasViolation != tt.expectViolation {
				t.Errorf("Expected violation=%v, got %v violations: %+v",
					tt.expectViolation, hasViolation, result.Violations)
			}

			for _, v := range result.Violations {
				if v.Policy != "instance-limits" {
					t.Errorf("Expected violation from instance-limits, got %s", v.Policy)
				}
			}
		})
	}
}

func TestEvaluate_BudgetLimits(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name          string
		mutate        func(*Input)
		expectAllowed bool
	}{
		{
			name:          "modest budget",
			mutate:        func(in *Input) {},
			expectAllowed: true,
		},
		{
			name:          "time limit over cap",
			mutate:        func(in *Input) { in.Budget.TimeLimitSeconds = 7200 },
			expectAllowed: false,
		},
		{
			name:          "too many workers",
			mutate:        func(in *Input) { in.Budget.Workers = 128 },
			expectAllowed: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := modestInput()
			tt.mutate(input)

			result, err := eng.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			if result.Allowed != tt.expectAllowed {
				t.Errorf("Expected allowed=%v, got %v. Violations: %+v",
					tt.expectAllowed, result.Allowed, result.Violations)
			}

			if !tt.expectAllowed {
				found := false
				for _, v := range result.Violations {
					if v.Policy == "budget-limits" {
						found = true
					}
				}
				if !found {
					t.Errorf("Expected a budget-limits violation, got: %+v", result.Violations)
				}
			}
		})
	}
}

func TestEvaluate_SearchSpaceWarnings(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Input)
	}{
		{
			name: "alternative fan-out",
			mutate: func(in *Input) {
				in.Problem.Jobs = 500
				in.Problem.Operations = 15000
				in.Problem.MaxAlternatives = 4
				in.Problem.Horizon = 500000
			},
		},
		{
			name: "vast horizon for little work",
			mutate: func(in *Input) {
				in.Problem.Operations = 50
				in.Problem.Horizon = 2000000
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := modestInput()
			tt.mutate(input)

			result, err := eng.Evaluate(context.Background(), input)
			if err != nil {
				t.Fatalf("Evaluation failed: %v", err)
			}

			// Warnings flag the solve but never block it
			if !result.Allowed {
				t.Errorf("Expected allowed=true, got violations: %+v", result.Violations)
			}

			found := false
			for _, w := range result.Warnings {
				if w.Policy == "search-space" {
					found = true
					if w.Severity.Blocks() {
						t.Errorf("search-space finding should not block, got severity %s", w.Severity)
					}
				}
			}
			if !found {
				t.Errorf("Expected a search-space warning, got: %+v", result.Warnings)
			}
		})
	}
}

func TestEvaluate_DeterministicOrder(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	result, err := eng.Evaluate(context.Background(), modestInput())
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	expected := []string{"budget-limits", "instance-limits", "search-space"}
	if !reflect.DeepEqual(result.Evaluated, expected) {
		t.Errorf("Expected evaluation order %v, got %v", expected, result.Evaluated)
	}
}

func TestEnableDisablePolicy(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policyName := "instance-limits"

	err = eng.DisablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to disable policy: %v", err)
	}

	policy, err := eng.GetPolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to get policy: %v", err)
	}

	if policy.Enabled {
		t.Error("Policy should be disabled")
	}

	// An oversized instance passes while the limits policy is off
	input := modestInput()
	input.Problem.Jobs = 2001

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	for _, v := range result.Violations {
		if v.Policy == policyName {
			t.Error("Disabled policy should not generate violations")
		}
	}

	err = eng.EnablePolicy(policyName)
	if err != nil {
		t.Fatalf("Failed to enable policy: %v", err)
	}

	result, err = eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected oversized instance to be denied after re-enabling")
	}
}

func TestLoadPolicies_Custom(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "no-flexible.rego")

	regoContent := `# Flexible shops are not accepted on this cluster
package custom.policies.kinds

import rego.v1

deny contains violation if {
	input.problem.kind == "flexible"
	violation := {
		"message": "flexible shop instances are not accepted here",
		"severity": "error",
	}
}`

	if err := os.WriteFile(policyFile, []byte(regoContent), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{tmpDir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	input := modestInput()
	input.Problem.Kind = "flexible"

	result, err := eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}

	if result.Allowed {
		t.Error("Expected flexible instance to be denied by custom policy")
	}

	found := false
	for _, v := range result.Violations {
		if v.Policy == "no-flexible" {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected a no-flexible violation, got: %+v", result.Violations)
	}

	// Other kinds still pass
	input.Problem.Kind = "job"
	result, err = eng.Evaluate(context.Background(), input)
	if err != nil {
		t.Fatalf("Evaluation failed: %v", err)
	}
	if !result.Allowed {
		t.Errorf("Expected job shop to pass, got violations: %+v", result.Violations)
	}
}

func TestLoadPolicies_CompileError(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "broken.rego")
	if err := os.WriteFile(policyFile, []byte("this is not rego"), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{tmpDir}); err == nil {
		t.Error("Expected error loading a policy that does not compile")
	}
}

func TestReloadPolicies(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	tmpDir := t.TempDir()
	policyFile := filepath.Join(tmpDir, "extra.rego")
	regoContent := `package custom.policies.extra

import rego.v1

deny contains violation if {
	false
	violation := "never"
}`
	if err := os.WriteFile(policyFile, []byte(regoContent), 0o644); err != nil {
		t.Fatalf("Failed to write policy file: %v", err)
	}

	if err := eng.LoadPolicies(context.Background(), []string{tmpDir}); err != nil {
		t.Fatalf("Failed to load policies: %v", err)
	}

	builtinCount := len(GetBuiltinPolicies())
	if got := len(eng.ListPolicies()); got != builtinCount+1 {
		t.Fatalf("Expected %d policies after custom load, got %d", builtinCount+1, got)
	}

	// Reload drops customs and restores the built-ins
	if err := eng.ReloadPolicies(context.Background()); err != nil {
		t.Fatalf("Failed to reload policies: %v", err)
	}

	if got := len(eng.ListPolicies()); got != builtinCount {
		t.Errorf("Expected %d policies after reload, got %d", builtinCount, got)
	}

	if _, err := eng.GetPolicy("extra"); err == nil {
		t.Error("Expected custom policy to be gone after reload")
	}
}

func TestListPolicies(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policies := eng.ListPolicies()

	if len(policies) == 0 {
		t.Fatal("No policies returned")
	}

	for _, p := range policies {
		if p.Name == "" {
			t.Error("Policy has empty name")
		}
		if p.Rego == "" {
			t.Error("Policy has empty Rego code")
		}
		if p.CreatedAt.IsZero() {
			t.Error("Policy has zero CreatedAt")
		}
	}

	for i := 1; i < len(policies); i++ {
		if policies[i-1].Name > policies[i].Name {
			t.Errorf("Expected policies sorted by name, got %s before %s",
				policies[i-1].Name, policies[i].Name)
		}
	}
}

func TestGetPolicy_NotFound(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	if _, err := eng.GetPolicy("no-such-policy"); err == nil {
		t.Error("Expected error for unknown policy")
	}
}

func TestCreateViolation(t *testing.T) {
	eng, err := NewEngine(testLogger())
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	policy := &Policy{Name: "test", Severity: SeverityError}

	v := eng.createViolation(policy, "plain message")
	if v.Message != "plain message" {
		t.Errorf("Expected message 'plain message', got %q", v.Message)
	}
	if v.Severity != SeverityError {
		t.Errorf("Expected policy default severity, got %s", v.Severity)
	}

	v = eng.createViolation(policy, map[string]interface{}{
		"message":  "object message",
		"severity": "warning",
		"hint":     "lower the worker count",
	})
	if v.Message != "object message" {
		t.Errorf("Expected message 'object message', got %q", v.Message)
	}
	if v.Severity != SeverityWarning {
		t.Errorf("Expected severity from the rule, got %s", v.Severity)
	}
	if v.Details["hint"] != "lower the worker count" {
		t.Errorf("Expected extra keys in details, got %+v", v.Details)
	}
}
