package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/jdziat/scheduled-publisher/pkg/core"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, closeDB, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			closeDB()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newScheduleCmd(a *app) *cobra.Command {
	var (
		owner      string
		content    string
		platforms  []string
		media      []string
		hashtags   []string
		at         string
		in         time.Duration
		maxRetries int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Queue a post for later publication",
		Long: `Queue a post. A running "publisherd serve" publishes it when due; the
sweep picks up jobs created by other processes.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			when, err := scheduleTime(at, in)
			if err != nil {
				return err
			}

			store, closeDB, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			job := &core.ScheduledJob{
				OwnerID:       owner,
				Content:       content,
				MediaURLs:     media,
				Hashtags:      hashtags,
				ScheduledTime: when,
				MaxRetries:    maxRetries,
			}
			for _, p := range platforms {
				job.Platforms = append(job.Platforms, core.Platform(strings.ToUpper(strings.TrimSpace(p))))
			}

			// The service is not started: the job is only persisted.
			if err := a.service(store, nil).Create(cmd.Context(), job); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s scheduled for %s\n", job.ID, job.ScheduledTime.Format(time.RFC3339))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&owner, "owner", "", "owner id")
	f.StringVar(&content, "content", "", "post text")
	f.StringSliceVarP(&platforms, "platform", "p", nil, "target platform (repeatable)")
	f.StringSliceVar(&media, "media", nil, "media URL (repeatable)")
	f.StringSliceVar(&hashtags, "hashtag", nil, "hashtag (repeatable)")
	f.StringVar(&at, "at", "", "publish time, RFC3339")
	f.DurationVar(&in, "in", 0, "publish after this delay")
	f.IntVar(&maxRetries, "max-retries", 0, "attempts before giving up (0 = configured default)")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("content")
	_ = cmd.MarkFlagRequired("platform")
	return cmd
}

func scheduleTime(at string, in time.Duration) (time.Time, error) {
	switch {
	case at != "" && in != 0:
		return time.Time{}, errors.New("use either --at or --in")
	case at != "":
		t, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return time.Time{}, errors.Wrapf(core.ErrInvalidSchedule, "--at: %v", err)
		}
		return t, nil
	case in > 0:
		return time.Now().Add(in), nil
	default:
		return time.Time{}, errors.Wrap(core.ErrInvalidSchedule, "--at or --in is required")
	}
}

func newCancelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel JOB_ID",
		Short: "Cancel a pending job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeDB, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			if err := a.service(store, nil).Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s cancelled\n", args[0])
			return nil
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "status [JOB_ID]",
		Short: "Show a job, or list an owner's jobs",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, closeDB, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			var jobs []*core.ScheduledJob
			switch {
			case len(args) == 1:
				job, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				jobs = append(jobs, job)
			case owner != "":
				jobs, err = store.ListByOwner(ctx, owner, "", 0)
				if err != nil {
					return err
				}
			default:
				return errors.New("a job id or --owner is required")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSCHEDULED\tPLATFORMS\tRETRIES\tERROR")
			for _, j := range jobs {
				names := make([]string, len(j.Platforms))
				for i, p := range j.Platforms {
					names[i] = string(p)
				}
				errMsg := ""
				if j.ErrorMessage != nil {
					errMsg = *j.ErrorMessage
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\n",
					j.ID, j.Status, j.ScheduledTime.Local().Format(time.RFC3339),
					strings.Join(names, ","), j.RetryCount, j.MaxRetries, errMsg)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if len(args) == 1 {
				pubs, err := store.PublicationsForJob(ctx, args[0])
				if err != nil {
					return err
				}
				for _, p := range pubs {
					fmt.Fprintf(cmd.OutOrStdout(), "published %s %s at %s\n",
						p.Platform, p.ExternalPostID, p.PublishedAt.Local().Format(time.RFC3339))
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "list jobs of this owner")
	return cmd
}

func newAccountCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage connected social accounts",
	}

	var (
		owner, plat, accountID, token, refresh string
		expires                                time.Duration
	)
	add := &cobra.Command{
		Use:   "add",
		Short: "Store an access token for an owner on a platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeDB, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()

			acc := &core.SocialAccount{
				OwnerID:      owner,
				Platform:     core.Platform(strings.ToUpper(plat)),
				AccountID:    accountID,
				AccessToken:  token,
				RefreshToken: refresh,
				IsActive:     true,
			}
			if expires > 0 {
				exp := time.Now().Add(expires)
				acc.ExpiresAt = &exp
			}
			if err := store.SaveAccount(cmd.Context(), acc); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s account %s saved for %s\n", acc.Platform, acc.ID, owner)
			return nil
		},
	}
	f := add.Flags()
	f.StringVar(&owner, "owner", "", "owner id")
	f.StringVarP(&plat, "platform", "p", "", "platform")
	f.StringVar(&accountID, "account-id", "", "platform account id (LinkedIn person URN, Instagram user)")
	f.StringVar(&token, "token", "", "access token")
	f.StringVar(&refresh, "refresh-token", "", "refresh token or token secret")
	f.DurationVar(&expires, "expires-in", 0, "token lifetime (0 = no expiry)")
	_ = add.MarkFlagRequired("owner")
	_ = add.MarkFlagRequired("platform")
	_ = add.MarkFlagRequired("token")

	var rmOwner, rmPlat string
	remove := &cobra.Command{
		Use:   "disconnect",
		Short: "Deactivate an owner's accounts on a platform",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeDB, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB()
			p := core.Platform(strings.ToUpper(rmPlat))
			if err := store.DeactivateAccount(cmd.Context(), rmOwner, p); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s disconnected for %s\n", p, rmOwner)
			return nil
		},
	}
	remove.Flags().StringVar(&rmOwner, "owner", "", "owner id")
	remove.Flags().StringVarP(&rmPlat, "platform", "p", "", "platform")
	_ = remove.MarkFlagRequired("owner")
	_ = remove.MarkFlagRequired("platform")

	cmd.AddCommand(add, remove)
	return cmd
}
