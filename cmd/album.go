package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/kozaktomas/photo-curator/internal/albums"
	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/database"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var albumCmd = &cobra.Command{
	Use:   "album",
	Short: "Build and manage person albums",
}

var albumBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build a person album from a reference image",
	Long: `Detect the single face in a reference image, match it against every
stored face of the project and record the matching images in the person's album.`,
	RunE: runAlbumBuild,
}

var albumBuildDirCmd = &cobra.Command{
	Use:   "build-dir <directory>",
	Short: "Build albums from a directory of reference images",
	Long: `Build one album per reference image in a directory. The person name is
taken from the file name: "alice_smith.jpg" builds the album of "alice smith".
Several images of the same person are applied one after another.`,
	Args: cobra.ExactArgs(1),
	RunE: runAlbumBuildDir,
}

var albumListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the albums of a project",
	RunE:  runAlbumList,
}

var albumShowCmd = &cobra.Command{
	Use:   "show <album-id>",
	Short: "Show an album with its image links",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlbumShow,
}

var albumDeleteCmd = &cobra.Command{
	Use:   "delete <album-id>",
	Short: "Delete an album",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlbumDelete,
}

func init() {
	rootCmd.AddCommand(albumCmd)
	albumCmd.AddCommand(albumBuildCmd, albumBuildDirCmd, albumListCmd, albumShowCmd, albumDeleteCmd)

	for _, c := range []*cobra.Command{albumBuildCmd, albumBuildDirCmd, albumListCmd} {
		c.Flags().String("project", "", "Project ID")
		c.MarkFlagRequired("project")
	}
	albumBuildCmd.Flags().String("person", "", "Person name")
	albumBuildCmd.Flags().String("image", "", "Reference image with exactly one face")
	albumBuildCmd.MarkFlagRequired("person")
	albumBuildCmd.MarkFlagRequired("image")
	albumBuildDirCmd.Flags().Int("workers", 0, "Concurrent builds (overrides ALBUM_BUILD_WORKERS)")
}

func runAlbumBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID := mustGetString(cmd, "project")
	person := mustGetString(cmd, "person")

	data, err := os.ReadFile(mustGetString(cmd, "image"))
	if err != nil {
		return fmt.Errorf("failed to read reference image: %w", err)
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.newBuilder().Build(ctx, projectID, person, data)
	if err != nil {
		return err
	}

	verb := "Updated"
	if res.Created {
		verb = "Created"
	}
	fmt.Printf("%s album %s for %q: %d matched, %d images in album\n",
		verb, res.Album.ID, res.Album.PersonName, len(res.Matched), len(res.Album.ImageGroup))
	return nil
}

// referenceFile is one reference image found by build-dir.
type referenceFile struct {
	person string
	path   string
}

// collectReferences groups reference images by person name, sorted by path.
func collectReferences(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	byPerson := make(map[string][]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if !slices.Contains(constants.ReferenceImageExtensions, ext) {
			continue
		}
		person := personFromFilename(e.Name())
		if database.NormalizePersonName(person) == "" {
			continue
		}
		byPerson[person] = append(byPerson[person], filepath.Join(dir, e.Name()))
	}
	for _, paths := range byPerson {
		sort.Strings(paths)
	}
	return byPerson, nil
}

// personFromFilename maps "alice_smith-2.jpg" to "alice smith".
func personFromFilename(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if i := strings.LastIndex(base, "-"); i > 0 && isDigits(base[i+1:]) {
		base = base[:i]
	}
	return strings.TrimSpace(strings.ReplaceAll(base, "_", " "))
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

type buildOutcome struct {
	ref referenceFile
	res *albums.Result
	err error
}

type albumBuilder interface {
	Build(ctx context.Context, projectID, personName string, referenceImage []byte) (*albums.Result, error)
}

// buildAll runs the builds of different people concurrently, at most workers
// at a time. References of the same person run in order so merges don't race.
// Build failures are reported in the outcomes, not returned.
func buildAll(ctx context.Context, builder albumBuilder, projectID string, byPerson map[string][]string, workers int, onDone func()) ([]buildOutcome, error) {
	people := make([]string, 0, len(byPerson))
	for p := range byPerson {
		people = append(people, p)
	}
	sort.Strings(people)

	var (
		mu       sync.Mutex
		outcomes []buildOutcome
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for _, person := range people {
		paths := byPerson[person]
		g.Go(func() error {
			for _, path := range paths {
				if err := ctx.Err(); err != nil {
					return err
				}
				out := buildOutcome{ref: referenceFile{person: person, path: path}}
				if data, err := os.ReadFile(path); err != nil {
					out.err = err
				} else {
					out.res, out.err = builder.Build(ctx, projectID, person, data)
				}

				mu.Lock()
				outcomes = append(outcomes, out)
				mu.Unlock()
				if onDone != nil {
					onDone()
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return outcomes, err
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].ref.path < outcomes[j].ref.path })
	return outcomes, nil
}

func runAlbumBuildDir(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	projectID := mustGetString(cmd, "project")

	byPerson, err := collectReferences(args[0])
	if err != nil {
		return err
	}
	total := 0
	for _, paths := range byPerson {
		total += len(paths)
	}
	if total == 0 {
		fmt.Println("No reference images found.")
		return nil
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	workers := a.cfg.Search.BuildWorkers
	if w := mustGetInt(cmd, "workers"); w > 0 {
		workers = w
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Building albums"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)

	outcomes, err := buildAll(ctx, a.newBuilder(), projectID, byPerson, workers, func() { bar.Add(1) })
	bar.Finish()
	fmt.Println()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FILE\tPERSON\tRESULT")
	fmt.Fprintln(w, "----\t------\t------")
	var failed int
	for _, o := range outcomes {
		result := ""
		if o.err != nil {
			failed++
			result = "error: " + o.err.Error()
		} else {
			result = fmt.Sprintf("%d matched, %d in album", len(o.res.Matched), len(o.res.Album.ImageGroup))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", filepath.Base(o.ref.path), o.ref.person, result)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d built, %d failed\n", len(outcomes)-failed, failed)
	if failed > 0 {
		return fmt.Errorf("%d album build(s) failed", failed)
	}
	return nil
}

func runAlbumList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	list, err := a.store.ListAlbums(ctx, mustGetString(cmd, "project"))
	if err != nil {
		return fmt.Errorf("failed to list albums: %w", err)
	}
	if len(list) == 0 {
		fmt.Println("No albums found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPERSON\tIMAGES\tUPDATED")
	fmt.Fprintln(w, "--\t------\t------\t-------")
	for i := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", list[i].ID, list[i].PersonName, len(list[i].ImageGroup), list[i].UpdatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()

	fmt.Printf("\nTotal: %d albums\n", len(list))
	return nil
}

var errAlbumNotFound = errors.New("album not found")

func runAlbumShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	album, err := a.store.GetAlbum(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get album: %w", err)
	}
	if album == nil {
		return errAlbumNotFound
	}

	links, err := a.store.GetImageURLs(ctx, album.ImageGroup)
	if err != nil {
		return fmt.Errorf("failed to get image links: %w", err)
	}

	fmt.Printf("Album:   %s\n", album.ID)
	fmt.Printf("Project: %s\n", album.ProjectID)
	fmt.Printf("Person:  %s\n", album.PersonName)
	fmt.Printf("Updated: %s\n\n", album.UpdatedAt.Format("2006-01-02 15:04"))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tLINK")
	fmt.Fprintln(w, "-----\t----")
	for _, id := range album.ImageGroup {
		fmt.Fprintf(w, "%s\t%s\n", id, orDash(links[id]))
	}
	w.Flush()
	return nil
}

func runAlbumDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	album, err := a.store.GetAlbum(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get album: %w", err)
	}
	if album == nil {
		return errAlbumNotFound
	}
	if err := a.store.DeleteAlbum(ctx, album.ID); err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	fmt.Printf("Deleted album %s (%s)\n", album.ID, album.PersonName)
	return nil
}
