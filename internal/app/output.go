package app

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kojeffi/tbookers/internal/feed"
	"github.com/kojeffi/tbookers/internal/model"
	"github.com/kojeffi/tbookers/internal/session"
)

// urlResolver はメディア参照を表示用URLに変換する。
type urlResolver interface {
	Ref(ref model.MediaRef) string
}

const timeLayout = "2006-01-02 15:04"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(timeLayout)
}

func printSession(w io.Writer, s session.Snapshot) {
	if s.LastError != nil {
		fmt.Fprintf(w, "warning: %s\n", model.UserMessage(s.LastError))
	}
	if !s.LoggedIn {
		fmt.Fprintln(w, "Not logged in.")
		return
	}
	if s.Profile == nil {
		fmt.Fprintln(w, "Logged in (profile not loaded).")
		return
	}
	p := s.Profile
	fmt.Fprintf(w, "Logged in as %s <%s>\n", p.Name, p.Email)
	if p.Kind != "" {
		fmt.Fprintf(w, "  type: %s\n", p.Kind)
	}
	if p.Bio != "" {
		fmt.Fprintf(w, "  bio: %s\n", p.Bio)
	}
	fmt.Fprintf(w, "  followers: %d  following: %d  posts: %d  notifications: %d\n",
		p.FollowersCount, p.FollowingCount, p.PostsCount, s.NotificationCount)
}

func printFeed(w io.Writer, st feed.State, resolver urlResolver) {
	if st.LastError != nil {
		fmt.Fprintf(w, "warning: %s\n", model.UserMessage(st.LastError))
	}
	if len(st.Posts) == 0 {
		fmt.Fprintln(w, "No posts.")
		return
	}
	for i, v := range st.Posts {
		if i > 0 {
			fmt.Fprintln(w)
		}
		d := v.Display
		fmt.Fprintf(w, "[%s] %s  %s\n", v.Post.ID, d.Author.Name, formatTime(d.CreatedAt))
		if d.Reposter != nil {
			fmt.Fprintf(w, "  reposted by %s\n", d.Reposter.Name)
		}
		for _, line := range strings.Split(d.Body, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
		for _, m := range d.Media {
			fmt.Fprintf(w, "  (%s) %s\n", m.Kind, resolver.Ref(m))
		}
		liked := ""
		if d.ViewerHasLiked {
			liked = " (liked)"
		}
		fmt.Fprintf(w, "  likes: %d%s  comments: %d  reposts: %d\n",
			d.LikeCount, liked, d.CommentCount, d.RepostCount)
	}
}

func printComments(w io.Writer, comments []model.Comment) {
	if len(comments) == 0 {
		fmt.Fprintln(w, "No comments.")
		return
	}
	for _, c := range comments {
		fmt.Fprintf(w, "%s  %s\n  %s\n", c.Author.Name, formatTime(c.CreatedAt), c.Content)
	}
}

func printGroups(w io.Writer, groups []model.Group) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tMEMBERS\tJOINED")
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%v\n", g.Slug, g.Name, g.MembersCount, g.IsMember)
	}
	tw.Flush()
}

func printClasses(w io.Writer, classes []model.LiveClass) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tINSTRUCTOR\tSTARTS\tREGISTERED")
	for _, c := range classes {
		starts := "-"
		if c.StartsAt != nil {
			starts = formatTime(*c.StartsAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%v\n", c.ID, c.Title, c.Instructor.Name, starts, c.IsRegistered)
	}
	tw.Flush()
}

func printResources(w io.Writer, resources []model.LearningResource, resolver urlResolver) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tPRICE\tAUTHOR\tFILE")
	for _, r := range resources {
		file := "-"
		if r.File != nil {
			file = resolver.Ref(*r.File)
		}
		price := fmt.Sprintf("%.2f", r.Price)
		if r.Currency != "" {
			price += " " + r.Currency
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.ID, r.Title, price, r.Author.Name, file)
	}
	tw.Flush()
}

func printNotifications(w io.Writer, ns []model.Notification) {
	if len(ns) == 0 {
		fmt.Fprintln(w, "No notifications.")
		return
	}
	for _, n := range ns {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s  %s\n", mark, formatTime(n.CreatedAt), n.Message)
	}
	fmt.Fprintf(w, "%d unread\n", model.CountUnread(ns))
}
