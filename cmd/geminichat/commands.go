package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/capitalize-ai/gemini-chat/internal/attachment"
	"github.com/capitalize-ai/gemini-chat/internal/export"
	"github.com/capitalize-ai/gemini-chat/internal/model"
	"github.com/capitalize-ai/gemini-chat/internal/service"
)

func (c *cli) t(cmd *cobra.Command, key string, params map[string]any) string {
	return c.app.Settings.T(cmd.Context(), key, params)
}

func (c *cli) println(cmd *cobra.Command, key string, params map[string]any) {
	fmt.Fprintln(cmd.OutOrStdout(), c.t(cmd, key, params))
}

func (c *cli) newCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "new [title]",
		Short: "Start a new conversation and make it active",
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, err := c.app.Conversations.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			c.println(cmd, "cli.conversationCreated", map[string]any{"id": conv.ID})
			return nil
		},
	}
}

func (c *cli) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List conversations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap := c.app.Conversations.State()
			if len(snap.Conversations) == 0 {
				c.println(cmd, "cli.noConversations", nil)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, conv := range snap.Conversations {
				marker := " "
				if snap.CurrentConversationID != nil && *snap.CurrentConversationID == conv.ID {
					marker = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", marker, conv.ID, conv.Title, len(conv.Messages))
			}
			return tw.Flush()
		},
	}
}

func (c *cli) switchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "switch <id>",
		Short: "Make a conversation active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Conversations.Switch(args[0]); err != nil {
				return err
			}
			conv, _ := c.app.Store.Current()
			c.println(cmd, "cli.switched", map[string]any{"title": conv.Title})
			return nil
		},
	}
}

func (c *cli) renameCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <id> <title>",
		Short: "Set a conversation title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			title := strings.Join(args[1:], " ")
			if err := c.app.Conversations.Rename(args[0], title); err != nil {
				return err
			}
			c.println(cmd, "cli.conversationRenamed", map[string]any{"id": args[0], "title": title})
			return nil
		},
	}
}

func (c *cli) deleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Conversations.Get(args[0]); err != nil {
				return err
			}
			c.app.Conversations.Delete(args[0])
			c.println(cmd, "cli.conversationDeleted", map[string]any{"id": args[0]})
			return nil
		},
	}
}

func (c *cli) sendCommand() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "send <prompt>",
		Short: "Send a prompt in the active conversation",
		Long:  "Send a prompt in the active conversation. Use - as the prompt to read it from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read prompt: %w", err)
				}
				prompt = string(data)
			}

			blobs, err := attachment.LoadAll(files)
			if err != nil {
				return err
			}

			resp, err := c.app.Messages.Generate(cmd.Context(), prompt, blobs)
			return c.printReply(cmd, resp, err)
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Attach a file (repeatable)")
	return cmd
}

func (c *cli) regenerateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate",
		Short: "Ask again for the last prompt of the active conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.Messages.Regenerate(cmd.Context())
			return c.printReply(cmd, resp, err)
		},
	}
}

func (c *cli) printReply(cmd *cobra.Command, resp *model.GenerateResponse, err error) error {
	var gerr *service.GenerationError
	switch {
	case errors.As(err, &gerr):
		return errors.New(gerr.Message)
	case errors.Is(err, service.ErrEmptyPrompt):
		return errors.New(c.t(cmd, "errors.emptyPrompt", nil))
	case errors.Is(err, service.ErrBusy):
		return errors.New(c.t(cmd, "errors.busy", nil))
	case err != nil:
		return err
	}

	if resp.ModelMessage != nil {
		fmt.Fprintln(cmd.OutOrStdout(), resp.ModelMessage.Content.Text())
	}
	return nil
}

func (c *cli) historyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "history [id]",
		Short: "List the messages of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conv, ok := c.app.Store.Current()
			if len(args) == 1 {
				var err error
				if conv, err = c.app.Conversations.Get(args[0]); err != nil {
					return err
				}
				ok = true
			}
			if !ok || len(conv.Messages) == 0 {
				c.println(cmd, "cli.noMessages", nil)
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, msg := range conv.Messages {
				marker := " "
				if msg.IsErrorAssociated {
					marker = "!"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", marker, msg.ID, msg.Role(), preview(msg.Content.Text()))
			}
			return tw.Flush()
		},
	}
}

func preview(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > 60 {
		return string(runes[:60]) + "..."
	}
	return text
}

func (c *cli) deleteMessagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-messages <message-id>...",
		Short: "Delete messages and their pairs from the active conversation",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.app.Conversations.DeleteMessages(args)
			if err != nil {
				return err
			}
			c.println(cmd, "cli.selectionDeleted", map[string]any{"count": n})
			return nil
		},
	}
}

func (c *cli) modelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models the configured provider offers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resp, err := c.app.Messages.Models(cmd.Context())
			if errors.Is(err, service.ErrNoAPIKey) {
				return errors.New(c.t(cmd, "errors.apiKeyNotSet", nil))
			}
			if err != nil {
				return err
			}
			for _, name := range resp.Models {
				marker := " "
				if name == resp.Default {
					marker = "*"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, name)
			}
			return nil
		},
	}
}

func (c *cli) troubleshootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "troubleshoot",
		Short: "Toggle sending error exchanges as history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.app.Conversations.ToggleTroubleshooting() {
				c.println(cmd, "cli.troubleshootingOn", nil)
			} else {
				c.println(cmd, "cli.troubleshootingOff", nil)
			}
			return nil
		},
	}
}

func (c *cli) tokensCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens [id]",
		Short: "Count the tokens of a conversation",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			count, err := c.app.Conversations.RefreshTokenCount(cmd.Context(), id)
			if errors.Is(err, service.ErrNoAPIKey) {
				return errors.New(c.t(cmd, "errors.apiKeyNotSet", nil))
			}
			if err != nil {
				return err
			}
			c.println(cmd, "cli.tokens", map[string]any{
				"total":  count.TotalTokens,
				"cached": count.CachedContentTokenCount,
			})
			return nil
		},
	}
}

func (c *cli) exportCommand() *cobra.Command {
	var (
		format     string
		out        string
		all        bool
		includeKey bool
	)

	cmd := &cobra.Command{
		Use:   "export [id]",
		Short: "Export a conversation, or the full state with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data     []byte
				filename string
				err      error
			)
			if all {
				data, err = c.app.Conversations.ExportState(cmd.Context(), includeKey)
				filename = "gemini-chat-export.json"
			} else {
				f, perr := export.ParseFormat(format)
				if perr != nil {
					return perr
				}
				id := ""
				if len(args) == 1 {
					id = args[0]
				}
				data, filename, err = c.app.Conversations.Export(id, f)
			}
			if err != nil {
				return err
			}

			if out == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, data, 0o600); err != nil {
				return fmt.Errorf("failed to write export: %w", err)
			}
			c.println(cmd, "cli.exported", map[string]any{"path": out})
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "markdown", "Export format: markdown|json")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file, - for stdout (default derived from the title)")
	cmd.Flags().BoolVar(&all, "all", false, "Export the full client state")
	cmd.Flags().BoolVar(&includeKey, "include-key", false, "Include the API key in a full-state export")
	return cmd
}

func (c *cli) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace all conversations with an exported file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read import: %w", err)
			}
			n, err := c.app.Conversations.Import(raw)
			if err != nil {
				return err
			}
			c.println(cmd, "cli.imported", map[string]any{"count": n})
			return nil
		},
	}
}

func (c *cli) setKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-key <key>",
		Short: "Store the API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Settings.SetAPIKey(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.println(cmd, "cli.apiKeySaved", nil)
			return nil
		},
	}
}

func (c *cli) localeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "locale <code>",
		Short: "Set the interface language (en, ru)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Settings.SetLocale(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.println(cmd, "cli.localeSaved", map[string]any{"locale": args[0]})
			return nil
		},
	}
}
