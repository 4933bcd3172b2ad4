package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/form"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
	"github.com/Makepad-fr/tada/internal/ui"
	"github.com/Makepad-fr/tada/internal/upload"
	"github.com/Makepad-fr/tada/internal/view"
)

func (r *runner) listCommand() *cli.Command {
	return &cli.Command{
		Name:    "ls",
		Aliases: []string{"list"},
		Usage:   "list todos",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "filter", Aliases: []string{"f"}, Usage: "all, pending, in-progress, done or hide-done"},
			&cli.BoolFlag{Name: "group", Aliases: []string{"g"}, Usage: "group by status"},
		},
		Action: r.list,
	}
}

func (r *runner) addCommand() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "add a todo (title can be multiple words)",
		ArgsUsage: "<title...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "desc", Aliases: []string{"d"}, Usage: "description"},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "path to a JPEG or PNG image"},
		},
		Action: r.add,
	}
}

func (r *runner) showCommand() *cli.Command {
	return &cli.Command{Name: "show", Usage: "show one todo", ArgsUsage: "<id>", Action: r.show}
}

func (r *runner) editCommand() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "change a todo; only the given fields are sent",
		ArgsUsage: "<id>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "title", Aliases: []string{"t"}},
			&cli.StringFlag{Name: "desc", Aliases: []string{"d"}},
			&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "pending, in-progress or done"},
			&cli.StringFlag{Name: "image", Aliases: []string{"i"}, Usage: "path to a JPEG or PNG image"},
			&cli.BoolFlag{Name: "clear-image", Usage: "remove the image"},
		},
		Action: r.edit,
	}
}

func (r *runner) statusCommand() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "set the status of a todo",
		ArgsUsage: "<id> <pending|in-progress|done>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return usageError("usage: tada status <id> <pending|in-progress|done>")
			}
			st, err := model.ParseStatus(c.Args().Get(1))
			if err != nil {
				return usageError("status: %v", err)
			}
			return r.setStatus(c, st)
		},
	}
}

func (r *runner) doneCommand() *cli.Command {
	return &cli.Command{
		Name:      "done",
		Usage:     "mark a todo done",
		ArgsUsage: "<id>",
		Action:    func(c *cli.Context) error { return r.setStatus(c, model.StatusDone) },
	}
}

func (r *runner) removeCommand() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "delete a todo",
		ArgsUsage: "<id>",
		Flags:     []cli.Flag{&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"}},
		Action:    r.remove,
	}
}

// load fetches the list; every command works on fresh server state.
func (r *runner) load(ctx context.Context) error {
	if err := r.requireAuth(); err != nil {
		return err
	}
	return r.env.Store.Load(ctx)
}

// lookup loads and returns the item named by the first argument.
func (r *runner) lookup(c *cli.Context) (model.Item, error) {
	id, err := parseID(c)
	if err != nil {
		return model.Item{}, err
	}
	if err := r.load(c.Context); err != nil {
		return model.Item{}, err
	}
	it, ok := r.env.Store.Get(id)
	if !ok {
		return model.Item{}, cli.Exit(fmt.Sprintf("todo #%d not found", id), 1)
	}
	return it, nil
}

func (r *runner) list(c *cli.Context) error {
	f := r.env.Config.Filter()
	if c.IsSet("filter") {
		var err error
		if f, err = view.ParseFilter(c.String("filter")); err != nil {
			return usageError("ls: %v", err)
		}
	}
	if err := r.load(c.Context); err != nil {
		return err
	}
	items := r.env.Store.Items()
	shown := view.Project(items, f)

	var lines []string
	if c.Bool("group") {
		lines = groupLines(shown)
	} else {
		lines = flatLines(shown)
	}
	ui.FPanel(r.deps.Out, append(header(items, f), lines...))
	return nil
}

func header(items []model.Item, f view.Filter) []string {
	st := view.Count(items)
	t := ui.Current()
	title := ui.C(t.Title, "tada")
	if f != view.All {
		title += ui.C(t.Muted, " · "+f.Label())
	}
	return []string{
		title,
		fmt.Sprintf("%s  %s",
			ui.ProgressBar(st.Done, st.Total(), 20),
			ui.C(t.Muted, fmt.Sprintf("%d pending · %d in progress · %d done", st.Pending, st.InProgress, st.Done))),
		"",
	}
}

func itemLine(it model.Item) string {
	t := ui.Current()
	title := ui.Truncate(it.Title, 60)
	if it.Done() {
		title = ui.C(t.Muted, title)
	}
	line := fmt.Sprintf("%s %s %s", ui.Dim(fmt.Sprintf("%5s", fmt.Sprintf("#%d", it.ID))), ui.C(t.StatusColor(it.Status), t.Glyph(it.Status)), title)
	if it.ImageURL != "" {
		line += " " + ui.C(t.Accent, "▣")
	}
	return line
}

func flatLines(items []model.Item) []string {
	if len(items) == 0 {
		return []string{ui.C(ui.Current().Muted, "no items")}
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, itemLine(it))
	}
	return out
}

func groupLines(items []model.Item) []string {
	groups := view.Group(items)
	var lines []string
	for i, st := range model.Statuses {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, ui.C(ui.Current().Accent, string(st)))
		if len(groups[st]) == 0 {
			lines = append(lines, ui.C(ui.Current().Muted, "(none)"))
			continue
		}
		lines = append(lines, flatLines(groups[st])...)
	}
	return lines
}

func (r *runner) show(c *cli.Context) error {
	it, err := r.lookup(c)
	if err != nil {
		return err
	}
	t := ui.Current()
	lines := []string{
		ui.C(t.Title, fmt.Sprintf("#%d %s", it.ID, it.Title)),
		"status:  " + ui.StatusBadge(it.Status),
	}
	if it.Description != "" {
		lines = append(lines, "", it.Description, "")
	}
	if it.ImageURL != "" {
		lines = append(lines, "image:   "+it.ImageURL)
	}
	if !it.CreatedAt.IsZero() {
		lines = append(lines, ui.C(t.Muted, "created: "+it.CreatedAt.Local().Format(time.DateTime)))
	}
	if !it.UpdatedAt.IsZero() {
		lines = append(lines, ui.C(t.Muted, "updated: "+it.UpdatedAt.Local().Format(time.DateTime)))
	}
	ui.FPanel(r.deps.Out, lines)
	return nil
}

// attach selects path in the form and waits for its upload.
func (r *runner) attach(ctx context.Context, f *form.Controller, path string) error {
	file, err := upload.FileFromPath(path)
	if err != nil {
		return cli.Exit("image: "+err.Error(), 2)
	}
	ch, err := f.SelectImage(ctx, file)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.deps.Out, ui.Dim("uploading "+file.Name+"…"))
	if res := <-ch; res.Err != nil {
		return res.Err
	}
	return nil
}

func (r *runner) add(c *cli.Context) error {
	title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if title == "" {
		return usageError("usage: tada add <title...>")
	}
	if err := r.requireAuth(); err != nil {
		return err
	}
	f := r.env.NewForm()
	f.OpenAdd()
	defer f.Cancel()
	f.SetTitle(title)
	f.SetDescription(c.String("desc"))
	if p := c.String("image"); p != "" {
		if err := r.attach(c.Context, f, p); err != nil {
			return err
		}
	}
	if err := f.Submit(c.Context, r.env.Store); err != nil {
		return err
	}
	items := r.env.Store.Items()
	if len(items) > 0 {
		ui.OK(fmt.Sprintf("added #%d", items[0].ID))
	} else {
		ui.OK("added")
	}
	return nil
}

func (r *runner) edit(c *cli.Context) error {
	it, err := r.lookup(c)
	if err != nil {
		return err
	}
	f := r.env.NewForm()
	f.OpenEdit(it)
	defer f.Cancel()

	if c.IsSet("title") {
		f.SetTitle(c.String("title"))
	}
	if c.IsSet("desc") {
		f.SetDescription(c.String("desc"))
	}
	if c.IsSet("status") {
		st, err := model.ParseStatus(c.String("status"))
		if err != nil {
			return usageError("edit: %v", err)
		}
		f.SetStatus(st)
	}
	switch {
	case c.Bool("clear-image") && c.IsSet("image"):
		return usageError("edit: --image and --clear-image are exclusive")
	case c.Bool("clear-image"):
		f.ClearImage()
	case c.IsSet("image"):
		if err := r.attach(c.Context, f, c.String("image")); err != nil {
			return err
		}
	}
	if f.ChangeSet().Empty() {
		ui.OK(fmt.Sprintf("#%d unchanged", it.ID))
		return nil
	}
	if err := f.Submit(c.Context, r.env.Store); err != nil {
		return editError(err)
	}
	ui.OK(fmt.Sprintf("updated #%d", it.ID))
	return nil
}

// editError adds a reload hint to partial failures.
func editError(err error) error {
	var pe *store.PartialUpdateError
	if errors.As(err, &pe) {
		return cli.Exit(fmt.Sprintf("%s\nthe server kept the %s change; run `tada show %d` to see its state", pe.Error(), pe.Committed, pe.ID), 1)
	}
	return err
}

func (r *runner) setStatus(c *cli.Context, st model.Status) error {
	it, err := r.lookup(c)
	if err != nil {
		return err
	}
	if it.Status == st {
		ui.OK(fmt.Sprintf("#%d already %s", it.ID, st))
		return nil
	}
	if err := r.env.Store.ApplyEdit(c.Context, it.ID, model.ChangeSet{Status: &st}); err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("#%d %s", it.ID, ui.StatusBadge(st)))
	return nil
}

func (r *runner) remove(c *cli.Context) error {
	it, err := r.lookup(c)
	if err != nil {
		return err
	}
	f := r.env.NewForm()
	f.RequestDelete(it.ID)
	if !c.Bool("yes") {
		ok, err := r.confirm(fmt.Sprintf("Delete #%d %q?", it.ID, it.Title))
		if err != nil {
			return err
		}
		if !ok {
			f.CancelDelete()
			fmt.Fprintln(r.deps.Out, ui.Dim("kept"))
			return nil
		}
	}
	if err := f.ConfirmDelete(c.Context, r.env.Store); err != nil {
		return err
	}
	ui.OK(fmt.Sprintf("removed #%d", it.ID))
	return nil
}

func (r *runner) configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "print the resolved configuration and where each value came from",
		Action: func(*cli.Context) error {
			cfg := r.env.Config
			lines := []string{ui.C(ui.Current().Title, "configuration")}
			for _, f := range config.Fields {
				lines = append(lines, fmt.Sprintf("%-16s %s %s", f, cfg.Get(f), ui.Dim("("+string(cfg.Sources[f])+")")))
			}
			for _, p := range cfg.Files {
				lines = append(lines, ui.Dim("file: "+p))
			}
			ui.FPanel(r.deps.Out, lines)
			return nil
		},
	}
}
