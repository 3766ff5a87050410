package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kojeffi/tbookers/internal/apiclient"
	"github.com/kojeffi/tbookers/internal/database"
	"github.com/kojeffi/tbookers/internal/model"
)

// Run はCLIのメインエントリーポイント。
// outにはコマンドの結果、logOutには構造化ログを書き込む。argsにはos.Args[1:]を渡す。
func Run(out, logOut io.Writer, args []string) error {
	root := NewRootCommand(out, logOut)
	root.SetArgs(args)
	return root.Execute()
}

// cli はコマンド間で共有する出力先とApp生成処理を保持する。
type cli struct {
	out    io.Writer
	logOut io.Writer
	in     io.Reader
}

// withApp は設定を読み込んでAppを生成し、保存済みセッションを読み込んでからfnを実行する。
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	cfg, log, err := Init(c.logOut)
	if err != nil {
		return err
	}
	a, err := New(cfg, log)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer a.Close()

	ctx := cmd.Context()
	if err := a.LoadSession(ctx); err != nil {
		return err
	}
	return fn(ctx, a)
}

// withFeed はログインを確認し、フィードを取得してからfnを実行する。
// 投稿IDで操作するコマンドはリポストの元投稿IDを解決するためにフィードが必要。
func (c *cli) withFeed(cmd *cobra.Command, fn func(ctx context.Context, a *App) error) error {
	return c.withApp(cmd, func(ctx context.Context, a *App) error {
		if !a.Session.LoggedIn() {
			return model.NewNotLoggedInError()
		}
		if err := a.Feed.Load(ctx); err != nil {
			return err
		}
		return fn(ctx, a)
	})
}

// NewRootCommand はtbookersコマンドツリーを構築する。
func NewRootCommand(out, logOut io.Writer) *cobra.Command {
	c := &cli{out: out, logOut: logOut, in: os.Stdin}

	var configPath string
	root := &cobra.Command{
		Use:           "tbookers",
		Short:         "tbookers client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if configPath != "" {
				return os.Setenv("TBOOKERS_CONFIG", configPath)
			}
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(logOut)
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a TOML config file")

	root.AddCommand(
		c.loginCmd(),
		c.registerCmd(),
		c.logoutCmd(),
		c.whoamiCmd(),
		c.feedCmd(),
		c.postActionCmd("like", "Like a post", func(ctx context.Context, a *App, id string) error { return a.Feed.Like(ctx, id) }),
		c.postActionCmd("unlike", "Remove a like", func(ctx context.Context, a *App, id string) error { return a.Feed.Unlike(ctx, id) }),
		c.postActionCmd("repost", "Repost a post", func(ctx context.Context, a *App, id string) error { return a.Feed.Repost(ctx, id) }),
		c.postActionCmd("delete", "Delete a post", func(ctx context.Context, a *App, id string) error { return a.Feed.Delete(ctx, id) }),
		c.postActionCmd("follow", "Follow the author of a post", func(ctx context.Context, a *App, id string) error { return a.Feed.Follow(ctx, id) }),
		c.commentCmd(),
		c.commentsCmd(),
		c.postCmd(),
		c.groupsCmd(),
		c.classesCmd(),
		c.resourcesCmd(),
		c.notificationsCmd(),
		c.profileCmd(),
		c.mediaCmd(),
		c.serveCmd(),
		c.migrateCmd(),
	)
	return root
}

// readPassword は端末からエコーなしでパスワードを読む。端末でない場合は1行読む。
func (c *cli) readPassword() (string, error) {
	fmt.Fprint(c.out, "Password: ")
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if password == "" && email != "" {
					p, err := c.readPassword()
					if err != nil {
						return err
					}
					password = p
				}
				if err := a.Auth.Login(ctx, email, password); err != nil {
					return err
				}
				printSession(c.out, a.Session.Snapshot())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var in apiclient.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if in.Password == "" && in.Email != "" {
					p, err := c.readPassword()
					if err != nil {
						return err
					}
					in.Password = p
				}
				if err := a.Auth.Register(ctx, in); err != nil {
					return err
				}
				printSession(c.out, a.Session.Snapshot())
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&in.Name, "name", "", "display name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "account password (prompted when omitted)")
	cmd.Flags().StringVar(&in.Kind, "type", "", "profile type (student, teacher, institution)")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credential",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.Auth.Logout(ctx); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Logged out.")
				return nil
			})
		},
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				printSession(c.out, a.Session.Snapshot())
				return nil
			})
		},
	}
}

func (c *cli) feedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Show the feed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, a *App) error {
				printFeed(c.out, a.Feed.Snapshot(), a.Resolver)
				return nil
			})
		},
	}
}

func (c *cli) postActionCmd(use, short string, fn func(ctx context.Context, a *App, id string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <post-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, a *App) error {
				if err := fn(ctx, a, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "%s: ok\n", use)
				return nil
			})
		},
	}
}

func (c *cli) commentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comment <post-id> <text>",
		Short: "Comment on a post",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, a *App) error {
				if err := a.Feed.Comment(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "comment: ok")
				return nil
			})
		},
	}
}

func (c *cli) commentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "comments <post-id>",
		Short: "Show the comments of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withFeed(cmd, func(ctx context.Context, a *App) error {
				if err := a.Feed.ExpandComments(ctx, args[0]); err != nil {
					return err
				}
				for _, v := range a.Feed.Snapshot().Posts {
					if v.Post.ID == args[0] {
						printComments(c.out, v.Comments)
						return nil
					}
				}
				return model.NewNotFoundError("")
			})
		},
	}
}

func (c *cli) postCmd() *cobra.Command {
	var media []string
	cmd := &cobra.Command{
		Use:   "post [text]",
		Short: "Create a post",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.Compose.Create(ctx, strings.Join(args, " "), media); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "post: ok")
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&media, "media", nil, "file to attach (repeatable)")
	return cmd
}

func (c *cli) groupsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "List groups",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				groups, err := a.Catalog.Groups(ctx)
				if err != nil {
					return err
				}
				printGroups(c.out, groups)
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "join <slug>",
		Short: "Join a group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.Catalog.JoinGroup(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "joined %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) classesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classes",
		Short: "List live classes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				classes, err := a.Catalog.LiveClasses(ctx)
				if err != nil {
					return err
				}
				printClasses(c.out, classes)
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "register <id>",
		Short: "Register for a live class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.Catalog.RegisterLiveClass(ctx, args[0]); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "registered for %s\n", args[0])
				return nil
			})
		},
	})
	return cmd
}

func (c *cli) resourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "List learning resources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				resources, err := a.Catalog.LearningResources(ctx)
				if err != nil {
					return err
				}
				printResources(c.out, resources, a.Resolver)
				return nil
			})
		},
	}
}

func (c *cli) notificationsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "notifications",
		Short: "List notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				ns, err := a.Catalog.Notifications(ctx)
				if err != nil {
					return err
				}
				printNotifications(c.out, ns)
				return nil
			})
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your profile",
	}
	var name, bio, kind, picture string
	update := &cobra.Command{
		Use:   "update",
		Short: "Update your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in := model.ProfileUpdate{PicturePath: picture}
			if cmd.Flags().Changed("name") {
				in.Name = &name
			}
			if cmd.Flags().Changed("bio") {
				in.Bio = &bio
			}
			if cmd.Flags().Changed("type") {
				in.Kind = &kind
			}
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				if err := a.Users.UpdateProfile(ctx, in); err != nil {
					return err
				}
				printSession(c.out, a.Session.Snapshot())
				return nil
			})
		},
	}
	update.Flags().StringVar(&name, "name", "", "display name")
	update.Flags().StringVar(&bio, "bio", "", "biography")
	update.Flags().StringVar(&kind, "type", "", "profile type")
	update.Flags().StringVar(&picture, "picture", "", "profile picture file")
	cmd.AddCommand(update)
	return cmd
}

func (c *cli) mediaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "media",
		Short: "Work with stored media",
	}
	var output string
	get := &cobra.Command{
		Use:   "get <path>",
		Short: "Download a media file from the storage host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *App) error {
				w := c.out
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating %s: %w", output, err)
					}
					defer f.Close()
					w = f
				}
				ref := model.NewMediaRefs([]string{args[0]})[0]
				n, err := a.Media.Get(ctx, ref, w)
				if err != nil {
					return err
				}
				if output != "" {
					fmt.Fprintf(c.out, "wrote %d bytes to %s\n", n, output)
				}
				return nil
			})
		},
	}
	get.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.AddCommand(get)
	return cmd
}

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the local agent API and background refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := Init(c.logOut)
			if err != nil {
				return err
			}
			a, err := New(cfg, log)
			if err != nil {
				return fmt.Errorf("initializing app: %w", err)
			}
			defer a.Close()

			// グレースフルシャットダウンのためのシグナルハンドリング
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.Serve(ctx, nil)
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply credential database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := Init(c.logOut)
			if err != nil {
				return err
			}

			var driver, dsn string
			switch cfg.CredentialStore {
			case "sqlite":
				driver, dsn = database.DriverSQLite, cfg.SQLitePath()
			case "postgres":
				driver, dsn = database.DriverPostgres, cfg.CredentialDatabaseURL
			default:
				fmt.Fprintf(c.out, "credential store %q has no database to migrate\n", cfg.CredentialStore)
				return nil
			}

			if driver == database.DriverSQLite {
				if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
					return fmt.Errorf("creating data dir: %w", err)
				}
			}
			db, err := database.Open(driver, dsn)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.RunMigrations(db, driver); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			version, dirty, err := database.Version(db, driver)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "migrated %s credential store to version %d (dirty=%v)\n", driver, version, dirty)
			return nil
		},
	}
}
