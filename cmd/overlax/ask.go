package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/overlax/overlax/internal/chat"
)

func newAskCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <message>",
		Short: "Ask the assistant one question",
		Example: `  overlax ask "what's due today?"
  overlax ask how do I plan a study week`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			conv := a.newConversation()
			defer conv.session.Close()
			if a.cfg.Authenticated() {
				if err := conv.loadOnce(ctx, a.cfg.UID); err != nil {
					return err
				}
			}

			tr := newTranscript(a.out)
			conv.session.OnUpdate(tr.update)

			outcome, err := conv.session.Send(ctx, strings.Join(args, " "))
			tr.finish()
			if err != nil {
				return err
			}

			switch outcome.Kind {
			case chat.OutcomeShowAddForm:
				fmt.Fprintln(a.out, "Use 'overlax task add' to add a task.")
			case chat.OutcomeFailed:
				return fmt.Errorf("assistant unavailable: %w", outcome.Err)
			}
			return nil
		},
	}
}
