package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/yungbote/skillgraph-backend/internal/app"
	"github.com/yungbote/skillgraph-backend/internal/clients/skillapi"
	domainagg "github.com/yungbote/skillgraph-backend/internal/domain/aggregates"
	"github.com/yungbote/skillgraph-backend/internal/editor"
	"github.com/yungbote/skillgraph-backend/internal/platform/ctxutil"
	"github.com/yungbote/skillgraph-backend/internal/platform/logger"
	"github.com/yungbote/skillgraph-backend/internal/platform/shutdown"
	"github.com/yungbote/skillgraph-backend/internal/services"
)

type idList []string

func (l *idList) String() string { return strings.Join(*l, ",") }
func (l *idList) Set(v string) error {
	v = strings.TrimSpace(v)
	if v != "" {
		*l = append(*l, v)
	}
	return nil
}

// skilledit drives an editor session against a running API, one command per
// line on stdin. With -mint it prints a bearer token signed with the
// configured JWT secret and exits.
func main() {
	var courses idList
	var apiURL, courseID, token, mintUser string
	var admin bool
	flag.StringVar(&apiURL, "api", "http://localhost:8080", "skill graph API base url")
	flag.StringVar(&courseID, "course", "", "course to edit")
	flag.StringVar(&token, "token", os.Getenv("SKILLGRAPH_TOKEN"), "bearer token")
	flag.StringVar(&mintUser, "mint", "", "print a token for this user id and exit")
	flag.Var(&courses, "teaches", "course id the minted token may edit (repeatable)")
	flag.BoolVar(&admin, "admin", false, "mint an admin token")
	flag.Parse()

	if mintUser != "" {
		cfg, err := app.LoadConfig()
		if err != nil {
			fmt.Printf("load config: %v\n", err)
			os.Exit(1)
		}
		auth := services.NewAuthService(logger.NewNop(), cfg.JWTSecretKey)
		tok, err := auth.IssueToken(ctxutil.Actor{UserID: mintUser, IsAdmin: admin, CourseIDs: courses}, cfg.AccessTokenTTL)
		if err != nil {
			fmt.Printf("issue token: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(tok)
		return
	}

	if strings.TrimSpace(courseID) == "" {
		fmt.Println("-course is required")
		os.Exit(2)
	}

	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	client, err := skillapi.New(log, skillapi.Config{BaseURL: apiURL, Token: token, MaxRetries: 3})
	if err != nil {
		fmt.Printf("init client: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := shutdown.NotifyContext(context.Background())
	defer stop()

	session := editor.NewSession(log, client, courseID, editor.SessionOptions{})
	if err := session.Open(ctx); err != nil {
		fmt.Printf("open course %s: %v\n", courseID, err)
		os.Exit(1)
	}
	if err := runScript(ctx, session, os.Stdin, os.Stdout); err != nil {
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
	session.Wait()
	if st := session.Status(); st.LastErr != nil {
		fmt.Printf("last write failed: %v\n", st.LastErr)
		os.Exit(1)
	}
}

func runScript(ctx context.Context, s *editor.Session, in io.Reader, out io.Writer) error {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		if err := runCommand(ctx, s, fields[0], fields[1:], out); err != nil {
			fmt.Fprintf(out, "%s: %v\n", fields[0], err)
		}
	}
	return sc.Err()
}

func runCommand(ctx context.Context, s *editor.Session, cmd string, args []string, out io.Writer) error {
	need := func(n int) error {
		if len(args) < n {
			return fmt.Errorf("want %d arguments got %d", n, len(args))
		}
		return nil
	}
	switch cmd {
	case "add":
		n, err := s.CreateSkill(ctx, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %q\n", n.ID, n.Name)
	case "dup":
		if err := need(1); err != nil {
			return err
		}
		n, err := s.DuplicateSkill(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %q\n", n.ID, n.Name)
	case "rm":
		if err := need(1); err != nil {
			return err
		}
		dependents, err := s.DeleteSkill(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "deleted, %d dependents updated\n", dependents)
	case "link":
		if err := need(2); err != nil {
			return err
		}
		return s.Connect(ctx, args[0], args[1])
	case "unlink":
		if err := need(2); err != nil {
			return err
		}
		return s.Disconnect(ctx, args[0], args[1])
	case "move":
		if err := need(3); err != nil {
			return err
		}
		x, errX := strconv.ParseFloat(args[1], 64)
		y, errY := strconv.ParseFloat(args[2], 64)
		if errX != nil || errY != nil {
			return fmt.Errorf("invalid position %s,%s", args[1], args[2])
		}
		s.BeginDrag()
		if err := s.Drag(args[0], x, y); err != nil {
			return err
		}
		s.EndDrag(ctx)
	case "rename":
		if err := need(2); err != nil {
			return err
		}
		name := strings.Join(args[1:], " ")
		s.BeginEdit()
		return s.UpdateAttributes(ctx, args[0], domainagg.SkillPatch{Name: &name})
	case "undo":
		if !s.Undo(ctx) {
			fmt.Fprintln(out, "nothing to undo")
		}
	case "redo":
		if !s.Redo(ctx) {
			fmt.Fprintln(out, "nothing to redo")
		}
	case "targets":
		if err := need(1); err != nil {
			return err
		}
		fmt.Fprintln(out, strings.Join(s.Graph().ValidConnectionTargets(args[0]).Sorted(), " "))
	case "wait":
		s.Wait()
		st := s.Status()
		fmt.Fprintf(out, "version=%d unsaved=%v err=%v\n", st.Version, st.HasUnsaved, st.LastErr)
	case "show":
		g := s.Graph()
		order, ok := g.TopologicalOrder()
		if !ok {
			order = g.IDs()
		}
		for _, id := range order {
			n, _ := g.Node(id)
			fmt.Fprintf(out, "%s %q (%d,%d) <- %s\n", n.ID, n.Name, n.PositionX, n.PositionY, strings.Join(n.Prerequisites, ","))
		}
	default:
		return fmt.Errorf("unknown command")
	}
	return nil
}
