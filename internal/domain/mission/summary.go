package mission

import (
	"fmt"
	"strings"
)

func (s State) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", s.Goal)
	fmt.Fprintf(&b, "Status: %s\n", s.Status)
	fmt.Fprintf(&b, "Iterations: %d/%d\n", s.Iteration, s.MaxIterations)
	if s.CurrentURL != "" {
		fmt.Fprintf(&b, "URL: %s\n", s.CurrentURL)
	}

	if recent := s.Recent(5); len(recent) > 0 {
		b.WriteString("\nRecent Actions:\n")
		for i, rec := range recent {
			fmt.Fprintf(&b, "  %d. %s\n", i+1, rec)
		}
	}

	if s.PendingApproval != nil {
		fmt.Fprintf(&b, "\nAwaiting approval: %s\n", s.PendingApproval.Verdict.Reason)
	}
	if s.Error != "" {
		fmt.Fprintf(&b, "\nError: %s\n", s.Error)
	}
	return b.String()
}
