package main

import (
	"fmt"
	"strings"

	"github.com/ideamans/go-l10n"
	"github.com/urfave/cli/v2"

	"github.com/user/replayclipper/pkg/adapters/osfilesystem"
	"github.com/user/replayclipper/pkg/medialib"
)

func listCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     l10n.T("List playable files under a directory"),
		ArgsUsage: "DIR",
		Action: func(c *cli.Context) error {
			dir := "."
			if c.NArg() > 0 {
				dir = c.Args().First()
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}

			tree, err := medialib.Scan(osfilesystem.New(), dir, cfg.Library.Extensions)
			if err != nil {
				return err
			}
			if tree.Len() == 0 {
				fmt.Println(styles.Dim.Render(l10n.F("No media files in %s", dir)))
				return nil
			}
			fmt.Print(renderTree(tree))
			fmt.Println(styles.Dim.Render(l10n.F("%d files", tree.Len())))
			return nil
		},
	}
}

func renderTree(tree *medialib.Tree) string {
	var b strings.Builder
	tree.Walk(func(n *medialib.Node, depth int) bool {
		indent := strings.Repeat("  ", depth)
		if n.IsDir {
			b.WriteString(indent + styles.Dir.Render(n.Name+"/") + "\n")
		} else {
			b.WriteString(indent + styles.File.Render(n.Name) + "\n")
		}
		return true
	})
	return b.String()
}
