package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"shopping-agent/internal/application/port/input"
	"shopping-agent/internal/di"
	"shopping-agent/internal/domain/entity"
	"shopping-agent/internal/infrastructure/userinteraction"

	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one mission in the terminal",
		Long: `Run a single shopping mission and stream its progress to the terminal.
Risky clicks such as "Place order" stop and ask for confirmation.

Examples:
  agent run --goal "buy a USB-C cable under $10" --url https://shop.example
  agent run --headless=false`,
		RunE: runMission,
	}
	cmd.Flags().String("goal", "", "what to buy; asked interactively when empty")
	cmd.Flags().String("url", "", "start page")
	return cmd
}

func runMission(cmd *cobra.Command, _ []string) error {
	cfg := loadConfig(cmd)
	goal, _ := cmd.Flags().GetString("goal")
	startURL, _ := cmd.Flags().GetString("url")

	console := userinteraction.NewConsoleUserInteraction()
	if strings.TrimSpace(goal) == "" {
		fmt.Println("\nEnter a shopping goal for the agent:")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read goal: %w", err)
		}
		goal = strings.TrimSpace(line)
	}

	container, err := di.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = container.Close(ctx)
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, events, err := container.Missions.Start(ctx, input.StartRequest{
		Goal:          goal,
		URL:           startURL,
		MaxIterations: cfg.MaxIterations,
	})
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		container.Missions.Cancel(id)
	}()

	var last entity.Event
	for ev := range events {
		last = ev
		console.ShowEvent(ctx, ev)
		if ev.Type != entity.EventStateUpdate || ev.Approval == nil {
			continue
		}
		approved, err := console.AskApproval(ctx, *ev.Approval)
		switch {
		case err != nil:
			container.Logger.Warn("Approval prompt aborted", "session", id, "error", err)
			container.Missions.Cancel(id)
		case approved:
			container.Missions.Approve(id)
		default:
			container.Missions.Deny(id)
		}
	}

	if last.Type == entity.EventError {
		return errors.New(last.Message)
	}
	return nil
}
