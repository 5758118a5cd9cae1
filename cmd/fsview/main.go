// Command fsview is the CLI surface for the filesystem-metadata indexer
// described in §6: scan a directory tree into a relational index, then
// list, report duplicates over, or print the tree of what was scanned.
//
// Grounded on the teacher's cli.RootCmd (Cobra root command, PersistentFlags
// bound through Viper), the same pattern cmd/weather follows.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rerupp/fsweather/internal/cliformat"
	"github.com/rerupp/fsweather/internal/config"
	"github.com/rerupp/fsweather/internal/dup"
	"github.com/rerupp/fsweather/internal/fswalk"
	"github.com/rerupp/fsweather/internal/fsviewapp"
	"github.com/rerupp/fsweather/internal/model"
)

var (
	flagDirectory string
	flagCSV       bool
	flagJSON      bool
	flagPretty    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		cliformat.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fsview",
	Short: "index a directory tree's metadata and report on its structure and duplicates",
}

func init() {
	cfg := config.Load("FSVIEW")
	rootCmd.PersistentFlags().StringVar(&flagDirectory, "directory", cfg.Directory, "store directory (defaults to FSVIEW_DATA)")
	rootCmd.PersistentFlags().BoolVar(&flagCSV, "csv", false, "render output as CSV")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "render output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagPretty, "pretty", false, "render output as an aligned table (default)")
	viper.BindPFlag("directory", rootCmd.PersistentFlags().Lookup("directory"))

	rootCmd.AddCommand(scanCmd, llCmd, dupsCmd, treeCmd)
}

func outputMode() cliformat.Mode {
	return cliformat.ModeFromFlags(flagCSV, flagJSON, flagPretty)
}

var (
	scanAlias          string
	scanFollowSymlinks bool
	scanSHA256         bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <root> [alias]",
	Short: "walk a directory tree and replace the store's index with its metadata",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := args[0]
		alias := root
		if len(args) == 2 {
			alias = args[1]
		} else if scanAlias != "" {
			alias = scanAlias
		}

		var fp dup.Fingerprinter = dup.SizeOnlyFingerprinter{}
		if scanSHA256 {
			fp = dup.SHA256Fingerprinter{}
		}

		result, err := fsviewapp.Scan(flagDirectory, root, alias, fswalk.Options{
			Fingerprinter:  fp,
			FollowSymlinks: scanFollowSymlinks,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%d folders, %d files, %d problems scanned\n",
			len(result.Folders), len(result.Files), len(result.Problems))
		return nil
	},
}

var llCmd = &cobra.Command{
	Use:   "ll [patterns...]",
	Short: "list the scanned root folders",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := fsviewapp.Open(flagDirectory)
		if err != nil {
			return err
		}
		defer app.Close()

		roots, err := app.ListRoots(args)
		if err != nil {
			return err
		}
		header := []string{"name", "pathname", "size"}
		rows := make([][]string, 0, len(roots))
		for _, r := range roots {
			rows = append(rows, []string{r.Name, r.Pathname, fmt.Sprint(r.Size)})
		}
		return cliformat.Table(os.Stdout, outputMode(), header, rows)
	},
}

var dupsCmd = &cobra.Command{
	Use:   "dups",
	Short: "report duplicate files and folders found in the last scan",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := fsviewapp.Open(flagDirectory)
		if err != nil {
			return err
		}
		defer app.Close()

		fileGroups, folderGroups, err := app.Dups()
		if err != nil {
			return err
		}

		header := []string{"kind", "group", "member", "wasted_bytes"}
		var rows [][]string
		for _, g := range fileGroups {
			for i, p := range g.Pathnames {
				wasted := ""
				if i == 0 {
					wasted = fmt.Sprint(g.WastedBytes)
				}
				rows = append(rows, []string{"file", g.GroupID, p, wasted})
			}
		}
		for _, g := range folderGroups {
			for _, f := range g.Folders {
				rows = append(rows, []string{"folder", g.GroupID, f.Pathname, ""})
			}
		}
		return cliformat.Table(os.Stdout, outputMode(), header, rows)
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "print the reconstructed folder/file/problem tree",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := fsviewapp.Open(flagDirectory)
		if err != nil {
			return err
		}
		defer app.Close()

		roots, err := app.Tree()
		if err != nil {
			return err
		}
		for _, r := range roots {
			printNode(r.Name, 0, &model.Node{Kind: model.NodeFolder, Folder: r})
		}
		return nil
	},
}

func printNode(name string, depth int, n *model.Node) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	switch n.Kind {
	case model.NodeFolder:
		fmt.Fprintf(os.Stdout, "%s%s/\n", indent, name)
		for childName, child := range n.Folder.Children {
			printNode(childName, depth+1, child)
		}
	case model.NodeFile:
		fmt.Fprintf(os.Stdout, "%s%s (%d bytes)\n", indent, name, n.File.Size)
	case model.NodeProblem:
		fmt.Fprintf(os.Stdout, "%s%s [problem: %s]\n", indent, name, n.Problem.Description)
	}
}

func init() {
	scanCmd.Flags().StringVar(&scanAlias, "alias", "", "entity alias to register (defaults to root or the positional alias)")
	scanCmd.Flags().BoolVar(&scanFollowSymlinks, "follow-symlinks", false, "descend into directory symlinks instead of recording them as files")
	scanCmd.Flags().BoolVar(&scanSHA256, "sha256", false, "use SHA-256 content fingerprinting instead of size-only")
}
