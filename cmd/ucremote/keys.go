package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/uc-remote-core/internal/credential"
)

func newCreateKeyCmd(a *app) *cobra.Command {
	var label string
	var save bool
	cmd := &cobra.Command{
		Use:   "create-key",
		Short: "Register a new API key on the hub using the PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			base, err := a.baseURL()
			if err != nil {
				return err
			}
			pin, err := a.requirePIN()
			if err != nil {
				return err
			}
			if label == "" {
				label = a.cfg.Remote.KeyLabel
			}

			mgr := a.credentials()
			cred, err := mgr.Create(ctx, base, pin, label)
			if err != nil {
				if credential.IsRetryable(err) {
					a.warnIfRegistered(cmd, mgr, base, pin, label)
				}
				return err
			}

			if save {
				store, closeStore, err := a.openStore(ctx)
				if err != nil {
					return fmt.Errorf("key created but not saved: %w", err)
				}
				defer closeStore()
				if err := store.Save(ctx, cred); err != nil {
					return fmt.Errorf("key created but not saved: %w", err)
				}
			}

			return a.render(cred, func() *table {
				return pairs(
					"hub", cred.HubID,
					"label", cred.Label,
					"key_id", cred.KeyID,
					"api_key", cred.Key,
					"created_at", cred.CreatedAt.Format(time.RFC3339),
					"saved", save,
				)
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "key name (default from config, "+credential.DefaultLabel+")")
	cmd.Flags().BoolVar(&save, "save", true, "cache the key in the local database")
	return cmd
}

// warnIfRegistered reports a key that the hub registered even though the
// create response was lost. Its secret cannot be recovered.
func (a *app) warnIfRegistered(cmd *cobra.Command, mgr *credential.Manager, base, pin, label string) {
	keys, err := mgr.List(cmd.Context(), base, pin)
	if err != nil {
		return
	}
	for _, k := range keys {
		if k.Label == label {
			fmt.Fprintf(a.errOut, "warning: a key named %q is registered on the hub; revoke it before retrying\n", label)
			return
		}
	}
}

func newRevokeKeyCmd(a *app) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "revoke-key",
		Short: "Delete an API key from the hub and the local cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			base, err := a.baseURL()
			if err != nil {
				return err
			}
			pin, err := a.requirePIN()
			if err != nil {
				return err
			}
			if label == "" {
				label = a.cfg.Remote.KeyLabel
			}

			result, err := a.credentials().Revoke(ctx, base, pin, label)
			if err != nil {
				return err
			}

			store, closeStore, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeStore()
			if err := store.Delete(ctx, base, label); err != nil {
				a.log.Debug("no cached key to delete", "hub", base, "label", label, "error", err)
			}

			out := map[string]string{"hub": base, "label": label, "result": result.String()}
			return a.render(out, func() *table {
				return pairs("hub", base, "label", label, "result", result.String())
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "key name (default from config)")
	return cmd
}

func newListKeysCmd(a *app) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "list-keys",
		Short: "List API keys registered on the hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd.Context())
			defer cancel()

			if cached {
				return a.listCachedKeys(cmd)
			}

			base, err := a.baseURL()
			if err != nil {
				return err
			}
			pin, err := a.requirePIN()
			if err != nil {
				return err
			}

			keys, err := a.credentials().List(ctx, base, pin)
			if err != nil {
				return err
			}
			return a.render(keys, func() *table {
				t := newTable("KEY ID", "NAME", "SCOPES", "CREATED")
				for _, k := range keys {
					t.add(k.KeyID, k.Label, k.Scopes, formatTime(k.CreatedAt))
				}
				return t
			})
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "list keys cached in the local database instead")
	return cmd
}

func (a *app) listCachedKeys(cmd *cobra.Command) error {
	store, closeStore, err := a.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer closeStore()

	creds, err := store.List(cmd.Context())
	if err != nil {
		return err
	}

	// The secret stays out of listings.
	type cachedKey struct {
		HubID     string    `json:"hub_id"`
		Label     string    `json:"label"`
		KeyID     string    `json:"key_id,omitempty"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]cachedKey, 0, len(creds))
	for _, c := range creds {
		out = append(out, cachedKey{HubID: c.HubID, Label: c.Label, KeyID: c.KeyID, CreatedAt: c.CreatedAt})
	}

	return a.render(out, func() *table {
		t := newTable("HUB", "LABEL", "KEY ID", "CREATED")
		for _, c := range out {
			t.add(c.HubID, c.Label, c.KeyID, formatTime(c.CreatedAt))
		}
		return t
	})
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
