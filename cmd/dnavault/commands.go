package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dtroode/dnavault-client/internal/model"
	"github.com/dtroode/dnavault-client/internal/service"
)

// errFailed marks a command that ran but did not succeed; its feedback is already printed.
var errFailed = errors.New("command failed")

// errUsage marks invalid command line arguments.
var errUsage = errors.New("usage error")

type commandFunc func(ctx context.Context, a *app, args []string) error

var commands = map[string]commandFunc{
	"login":    cmdLogin,
	"register": cmdRegister,
	"logout":   cmdLogout,
	"whoami":   cmdWhoami,
	"status":   cmdStatus,
	"ls":       cmdList,
	"upload":   cmdUpload,
	"download": cmdDownload,
	"export":   cmdExport,
	"import":   cmdImport,
	"rm":       cmdDelete,
	"info":     cmdInfo,
	"stats":    cmdStats,
}

var usages = map[string]string{
	"login":    "login -u <username> [-p <password> | -password-stdin]",
	"register": "register -u <username> [-p <password> -verify <password> | -password-stdin]",
	"logout":   "logout",
	"whoami":   "whoami",
	"status":   "status",
	"ls":       "ls [-search s] [-page n] [-limit n] [-sort field] [-order asc|desc] [-json]",
	"upload":   "upload <path>...",
	"download": "download [-o path] <id>",
	"export":   "export [-key key] [-force] <id> | export -rm <key>...",
	"import":   "import [-name name] <key>",
	"rm":       "rm <id>...",
	"info":     "info [-json] <id>",
	"stats":    "stats [-json]",
}

func newFlagSet(a *app, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "usage: dnavault %s\n", usages[name])
		fs.PrintDefaults()
	}
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %w", errUsage, err)
	}
	return nil
}

func cmdLogin(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "login")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	fromStdin := fs.Bool("password-stdin", false, "read the password from the first line of stdin")
	if err := parse(fs, args); err != nil {
		return err
	}

	form := model.LoginForm{Username: *username, Password: *password}
	if *fromStdin {
		lines, err := readLines(a.stdin, 1)
		if err != nil {
			return err
		}
		form.Password = lines[0]
	}

	return a.submit(ctx, form, false)
}

func cmdRegister(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "register")
	username := fs.String("u", "", "username")
	password := fs.String("p", "", "password")
	verify := fs.String("verify", "", "password again")
	fromStdin := fs.Bool("password-stdin", false, "read the password and its confirmation from the first two lines of stdin")
	if err := parse(fs, args); err != nil {
		return err
	}

	form := model.LoginForm{Username: *username, Password: *password, VerifyPassword: *verify}
	if *fromStdin {
		lines, err := readLines(a.stdin, 2)
		if err != nil {
			return err
		}
		form.Password, form.VerifyPassword = lines[0], lines[1]
	}

	return a.submit(ctx, form, true)
}

// submit runs the form flow and prints the field errors it left behind.
func (a *app) submit(ctx context.Context, form model.LoginForm, isRegistering bool) error {
	outcome := a.submission.Submit(ctx, form, isRegistering)

	for _, field := range model.Fields {
		if msg := a.sink.Error(field); msg != "" {
			fmt.Fprintf(a.stderr, "  %s: %s\n", field, msg)
		}
	}

	if outcome != model.OutcomeSucceeded {
		return fmt.Errorf("%w: %s", errFailed, outcome)
	}
	return nil
}

func cmdLogout(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlagSet(a, "logout"), args); err != nil {
		return err
	}

	result, err := a.session.Deauthenticate(ctx)
	if err != nil {
		return fmt.Errorf("logged out locally; server logout failed: %w", err)
	}

	fmt.Fprintln(a.stdout, messageOr(result.Message, "Logged out."))
	return nil
}

func cmdWhoami(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlagSet(a, "whoami"), args); err != nil {
		return err
	}

	user, ok := a.session.CurrentUser(ctx)
	if !ok {
		fmt.Fprintln(a.stderr, "Not logged in.")
		return errFailed
	}

	fmt.Fprintln(a.stdout, messageOr(user.Username, user.ID.String()))
	return nil
}

func cmdStatus(ctx context.Context, a *app, args []string) error {
	if err := parse(newFlagSet(a, "status"), args); err != nil {
		return err
	}

	status := a.session.Status(ctx)
	switch {
	case !status.Stored:
		fmt.Fprintln(a.stdout, "credential: none")
		return nil
	case status.Opaque:
		fmt.Fprintln(a.stdout, "credential: stored (opaque)")
		return nil
	}

	fmt.Fprintln(a.stdout, "credential: stored")
	if status.Subject != "" {
		fmt.Fprintf(a.stdout, "subject:    %s\n", status.Subject)
	}
	if status.ExpiresAt != nil {
		state := "expires"
		if status.Expired(time.Now()) {
			state = "expired"
		}
		fmt.Fprintf(a.stdout, "%s:    %s (%s)\n", state, status.ExpiresAt.Format(time.RFC3339), humanize.Time(*status.ExpiresAt))
	}
	return nil
}

func cmdList(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "ls")
	var q model.FileQuery
	fs.StringVar(&q.Search, "search", "", "file name filter")
	fs.IntVar(&q.Page, "page", 0, "page number, starting at 1")
	fs.IntVar(&q.Limit, "limit", 0, "files per page")
	fs.StringVar(&q.SortBy, "sort", "", "sort field, e.g. uploadedAt, fileName, originalSize")
	fs.StringVar(&q.SortOrder, "order", "", "asc or desc")
	asJSON := fs.Bool("json", false, "print the raw list as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	list, err := a.files.List(ctx, q)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, list)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tDNA SIZE\tRATIO\tUPLOADED")
	for _, f := range list.Files {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.ID,
			f.FileName,
			humanize.IBytes(uint64(max(f.OriginalSize, 0))),
			humanize.IBytes(uint64(max(f.DNASize, 0))),
			f.CompressionRatio,
			uploadedAt(f.UploadedAt))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	p := list.Pagination
	fmt.Fprintf(a.stdout, "page %d of %d, %s files\n", p.Page, p.TotalPages, humanize.Comma(int64(p.TotalFiles)))
	return nil
}

func cmdUpload(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "upload")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	for _, path := range fs.Args() {
		if err := a.uploadFile(ctx, path); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) uploadFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	_, err = a.files.Upload(ctx, filepath.Base(path), f)
	return err
}

func cmdDownload(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "download")
	output := fs.String("o", "", "output file, - for stdout (default: the stored file name)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	id := fs.Arg(0)

	target := *output
	if target == "" {
		detail, err := a.files.Detail(ctx, id)
		if err != nil {
			return err
		}
		target = filepath.Base(messageOr(detail.FileName, id))
	}

	body, err := a.files.Download(ctx, id)
	if err != nil {
		return err
	}
	defer body.Close()

	if target == "-" {
		_, err = io.Copy(a.stdout, body)
		return err
	}

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}

	fmt.Fprintf(a.stdout, "saved %s (%s)\n", target, humanize.IBytes(uint64(n)))
	return nil
}

func cmdExport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "export")
	key := fs.String("key", "", "object key (default: the file id)")
	force := fs.Bool("force", false, "replace an existing object")
	remove := fs.Bool("rm", false, "delete the exported objects named by the arguments")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 || (!*remove && fs.NArg() != 1) {
		fs.Usage()
		return errUsage
	}

	files, err := a.exportFiles(ctx)
	if err != nil {
		return err
	}

	if *remove {
		for _, k := range fs.Args() {
			if err := files.RemoveExport(ctx, k); err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "removed %s from %s\n", k, a.cfg.Storage.Bucket)
		}
		return nil
	}

	id := fs.Arg(0)
	if err := files.Export(ctx, id, *key, *force); err != nil {
		if errors.Is(err, service.ErrExportExists) {
			fmt.Fprintln(a.stderr, "Use -force to replace it.")
		}
		return err
	}

	fmt.Fprintf(a.stdout, "exported %s to %s\n", id, a.cfg.Storage.Bucket)
	return nil
}

func cmdImport(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "import")
	name := fs.String("name", "", "file name on the server (default: the last element of the key)")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	files, err := a.exportFiles(ctx)
	if err != nil {
		return err
	}

	_, err = files.Import(ctx, fs.Arg(0), *name)
	return err
}

func cmdDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "rm")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errUsage
	}

	for _, id := range fs.Args() {
		raw, err := a.files.Delete(ctx, id)
		if err != nil {
			return err
		}

		var answer struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(raw, &answer)
		fmt.Fprintf(a.stdout, "%s: %s\n", id, messageOr(answer.Message, "deleted"))
	}
	return nil
}

func cmdInfo(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "info")
	asJSON := fs.Bool("json", false, "print the raw detail as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}

	d, err := a.files.Detail(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, d)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id:\t%s\n", d.ID)
	fmt.Fprintf(tw, "name:\t%s\n", d.FileName)
	fmt.Fprintf(tw, "type:\t%s\n", d.MimeType)
	fmt.Fprintf(tw, "uploaded:\t%s\n", uploadedAt(d.UploadedAt))
	fmt.Fprintf(tw, "chunks:\t%d\n", d.TotalChunks)
	fmt.Fprintf(tw, "original:\t%s\n", humanize.IBytes(uint64(max(d.Sizes.Original, 0))))
	fmt.Fprintf(tw, "dna:\t%s\t(+%s%%)\n", humanize.IBytes(uint64(max(d.Sizes.DNA, 0))), humanize.FormatFloat("#.##", d.Overhead.DNAPercent))
	fmt.Fprintf(tw, "real dna:\t%s\t(+%s%%)\n", humanize.IBytes(uint64(max(d.Sizes.RealDNA, 0))), humanize.FormatFloat("#.##", d.Overhead.RealDNAPercent))
	fmt.Fprintf(tw, "encoding:\t%s bits/base, %s bases/byte\n",
		humanize.FormatFloat("#.##", d.Encoding.BitsPerBase),
		humanize.FormatFloat("#.##", d.Encoding.BasesPerEncodedByte))
	if d.ThumbnailURL != "" {
		fmt.Fprintf(tw, "thumbnail:\t%s\n", d.ThumbnailURL)
	}
	return tw.Flush()
}

func cmdStats(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet(a, "stats")
	asJSON := fs.Bool("json", false, "print the raw statistics as JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	s, err := a.files.Stats(ctx)
	if err != nil {
		return err
	}
	if *asJSON {
		return printJSON(a.stdout, s)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "files:\t%s\n", humanize.Comma(int64(s.TotalFiles)))
	fmt.Fprintf(tw, "chunks:\t%s\n", humanize.Comma(int64(s.TotalChunks)))
	fmt.Fprintf(tw, "original:\t%s\n", humanize.IBytes(uint64(max(s.Bytes.Original, 0))))
	fmt.Fprintf(tw, "dna:\t%s\t(+%s%%)\n", humanize.IBytes(uint64(max(s.Bytes.DNA, 0))), humanize.FormatFloat("#.##", s.Overhead.DNAPercent))
	fmt.Fprintf(tw, "real dna:\t%s\t(+%s%%)\n", humanize.IBytes(uint64(max(s.Bytes.RealDNA, 0))), humanize.FormatFloat("#.##", s.Overhead.RealDNAPercent))
	return tw.Flush()
}

// uploadedAt renders a server timestamp relative to now, or as sent when it does not parse.
func uploadedAt(s model.Scalar) string {
	if t, ok := s.Time(); ok {
		return humanize.Time(t)
	}
	return messageOr(s.String(), "-")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readLines reads n non-empty lines from r, trimming line endings.
func readLines(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0, n)
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read stdin: %w", err)
	}
	if len(lines) < n {
		return nil, fmt.Errorf("%w: expected %d line(s) on stdin, got %d", errUsage, n, len(lines))
	}
	return lines, nil
}
