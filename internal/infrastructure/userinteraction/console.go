package userinteraction

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"shopping-agent/internal/application/port/output"
	"shopping-agent/internal/domain/entity"

	"github.com/fatih/color"
)

var _ output.UserInteractionPort = (*ConsoleUserInteraction)(nil)

type ConsoleUserInteraction struct {
	reader *bufio.Reader
	out    io.Writer
}

func NewConsoleUserInteraction() *ConsoleUserInteraction {
	return NewConsole(os.Stdin, color.Output)
}

func NewConsole(in io.Reader, out io.Writer) *ConsoleUserInteraction {
	return &ConsoleUserInteraction{
		reader: bufio.NewReader(in),
		out:    out,
	}
}

// AskApproval prints the order summary and waits for an explicit yes.
// Anything else, including EOF, is a denial.
func (u *ConsoleUserInteraction) AskApproval(ctx context.Context, req entity.ApprovalRequest) (bool, error) {
	yellow := color.New(color.FgYellow, color.Bold)
	yellow.Fprintln(u.out, "\n⚠️  Approval required")

	summary := req.Verdict.Summary
	if summary == "" {
		summary = req.Verdict.Reason
	}
	fmt.Fprintln(u.out, summary)
	fmt.Fprint(u.out, "Approve this click? [y/N] > ")

	type answer struct {
		text string
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		text, err := u.reader.ReadString('\n')
		ch <- answer{text, err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.err != io.EOF {
			return false, fmt.Errorf("failed to read user input: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.text)) {
		case "y", "yes":
			color.New(color.FgGreen).Fprintln(u.out, "✓ Approved")
			return true, nil
		}
		color.New(color.FgRed).Fprintln(u.out, "✗ Denied")
		return false, nil
	}
}

func (u *ConsoleUserInteraction) ShowEvent(ctx context.Context, ev entity.Event) {
	switch ev.Type {
	case entity.EventStarted:
		color.New(color.FgCyan, color.Bold).Fprintf(u.out, "\n🛒 Mission started: %s\n", ev.Goal)
	case entity.EventNavigation:
		color.New(color.FgBlue).Fprintf(u.out, "🌐 %s\n", describePage(ev))
	case entity.EventStateUpdate:
		u.showStateUpdate(ev)
	case entity.EventCancelled:
		color.New(color.FgYellow).Fprintln(u.out, "\n⏹  Mission cancelled")
		u.showSummary(ev)
	case entity.EventComplete:
		color.New(color.FgGreen, color.Bold).Fprintln(u.out, "\n✓ Mission finished")
		u.showSummary(ev)
	case entity.EventError:
		color.New(color.FgRed, color.Bold).Fprintf(u.out, "\n❌ Mission failed: %s\n", ev.Message)
		u.showSummary(ev)
	}
}

func (u *ConsoleUserInteraction) showStateUpdate(ev entity.Event) {
	switch {
	case ev.LastAction != nil:
		rec := ev.LastAction
		c := color.New(color.FgGreen)
		icon := "✓"
		if rec.Outcome != entity.OutcomeSuccess {
			c = color.New(color.FgRed)
			icon = "✗"
		}
		c.Fprintf(u.out, "%s [%d] %s\n", icon, ev.Iteration, rec)
	case ev.Node != "":
		dim := color.New(color.Faint)
		dim.Fprintf(u.out, "   %s (iteration %d)\n", ev.Node, ev.Iteration)
	}
	for _, msg := range ev.Messages {
		fmt.Fprintln(u.out, msg)
	}
}

func (u *ConsoleUserInteraction) showSummary(ev entity.Event) {
	if ev.Summary == "" {
		return
	}
	color.New(color.Faint).Fprintln(u.out, ev.Summary)
}

func describePage(ev entity.Event) string {
	if ev.Title == "" {
		return ev.URL
	}
	return fmt.Sprintf("%s (%s)", truncate(ev.Title, 80), ev.URL)
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
