package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"mime"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"text/tabwriter"

	"docuquery/pkg/domain"
	"docuquery/pkg/service"
	"docuquery/pkg/session"
	"docuquery/services/docuquery/internal/app"
)

var errQuit = errors.New("quit")

const helpText = `commands:
  login <email> <password>
  google
  register <name> <email> <password>
  logout
  whoami
  docs [query]
  upload <path> [title]
  delete <id>
  ingestions [query]
  retry <id>
  tick
  ask <question>
  history
  dashboard
  users [query]
  help
  quit`

// console is a line-oriented client over an in-process app.
type console struct {
	app  *app.App
	sess *session.Store
	out  io.Writer
}

func newConsole(a *app.App, sess *session.Store, out io.Writer) *console {
	return &console{app: a, sess: sess, out: out}
}

// run reads commands from in until EOF or quit.
func (c *console) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	c.prompt()
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			err := c.exec(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.prompt()
	}
	return scanner.Err()
}

func (c *console) prompt() {
	if id, ok := c.sess.Current(); ok {
		fmt.Fprintf(c.out, "%s> ", id.Email)
		return
	}
	fmt.Fprint(c.out, "> ")
}

func (c *console) exec(ctx context.Context, line string) error {
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(cmd) {
	case "help":
		fmt.Fprintln(c.out, helpText)
		return nil
	case "quit", "exit":
		return errQuit
	case "login":
		if len(args) != 2 {
			return errors.New("usage: login <email> <password>")
		}
		id, err := c.sess.Login(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return c.welcome(id)
	case "google":
		id, err := c.sess.LoginWithGoogle(ctx)
		if err != nil {
			return err
		}
		return c.welcome(id)
	case "register":
		if len(args) < 3 {
			return errors.New("usage: register <name> <email> <password>")
		}
		name := strings.Join(args[:len(args)-2], " ")
		id, err := c.sess.Register(ctx, name, args[len(args)-2], args[len(args)-1])
		if err != nil {
			return err
		}
		return c.welcome(id)
	case "logout":
		if err := c.sess.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "signed out")
		return nil
	}

	id, ok := c.sess.Current()
	if !ok {
		return errors.New("not signed in")
	}
	switch strings.ToLower(cmd) {
	case "whoami":
		fmt.Fprintf(c.out, "%s <%s> role=%s id=%s\n", id.Name, id.Email, id.Role, id.ID)
	case "docs":
		docs, err := c.app.Documents().List(ctx, rest)
		if err != nil {
			return err
		}
		c.printDocuments(docs)
	case "upload":
		if len(args) == 0 {
			return errors.New("usage: upload <path> [title]")
		}
		return c.upload(ctx, id, args[0], strings.Join(args[1:], " "))
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: delete <id>")
		}
		if err := c.app.Documents().Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(c.out, "deleted document %s\n", args[0])
	case "ingestions":
		list, err := c.app.Ingestions().List(ctx, rest)
		if err != nil {
			return err
		}
		c.printIngestions(list)
	case "retry":
		if len(args) != 1 {
			return errors.New("usage: retry <id>")
		}
		ing, err := c.app.Ingestions().Retry(ctx, args[0])
		if err != nil {
			return err
		}
		c.printIngestions([]domain.Ingestion{ing})
	case "tick":
		n, err := c.app.Simulator().Tick()
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "advanced %d ingestions\n", n)
	case "ask":
		if rest == "" {
			return errors.New("usage: ask <question>")
		}
		answer, err := c.app.QA().AskQuestion(ctx, strings.ToLower(id.Email), rest)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, answer.Answer)
		for _, src := range answer.Sources {
			fmt.Fprintf(c.out, "  - %s (%s): %s\n", src.Title, src.UploadDate, src.Excerpt)
		}
	case "history":
		msgs, err := c.app.QA().History(ctx, strings.ToLower(id.Email), 0)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Fprintf(c.out, "[%s] %s: %s\n", m.CreatedAt.Format("15:04:05"), m.Role, m.Content)
		}
	case "dashboard":
		sum, err := c.app.Dashboard().Summary(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "documents: %d\n", sum.TotalDocuments)
		for _, status := range slices.Sorted(maps.Keys(sum.ByStatus)) {
			fmt.Fprintf(c.out, "  %s: %d\n", status, sum.ByStatus[status])
		}
		c.printIngestions(sum.RecentIngestions)
	case "users":
		if !c.sess.IsAdmin() {
			return errors.New("admin only")
		}
		users, err := c.app.Users().List(ctx, rest)
		if err != nil {
			return err
		}
		c.printUsers(users)
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return nil
}

func (c *console) welcome(id domain.Identity) error {
	c.app.RecordLogin(id)
	fmt.Fprintf(c.out, "signed in as %s (%s)\n", id.Name, id.Role)
	return nil
}

func (c *console) upload(ctx context.Context, id domain.Identity, path, title string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := c.app.Documents().Upload(ctx, service.UploadRequest{
		Title:       title,
		FileName:    filepath.Base(path),
		Size:        int64(len(content)),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Content:     content,
		UploadedBy:  id.Name,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "uploaded %s as document %s (%s)\n", doc.Title, doc.ID, doc.Status)
	return nil
}

func (c *console) printDocuments(docs []domain.Document) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tTYPE\tSIZE\tUPLOADED BY\tDATE\tSTATUS")
	for _, d := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", d.ID, d.Title, d.Type, d.Size, d.UploadedBy, d.UploadDate, d.Status)
	}
	_ = tw.Flush()
}

func (c *console) printIngestions(list []domain.Ingestion) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOCUMENT\tSTATUS\tPAGES\tPROGRESS\tERROR")
	for _, ing := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d/%d\t%.0f%%\t%s\n", ing.ID, ing.DocumentTitle, ing.Status, ing.ProcessedPages, ing.TotalPages, ing.Progress(), ing.Error)
	}
	_ = tw.Flush()
}

func (c *console) printUsers(users []domain.User) {
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tSTATUS")
	for _, u := range users {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.Status)
	}
	_ = tw.Flush()
}
