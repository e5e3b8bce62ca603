// Package main provides the graphtool CLI entry point.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nordgraph/graphtool/pkg/config"
	"github.com/nordgraph/graphtool/pkg/geoff"
	"github.com/nordgraph/graphtool/pkg/neo4j"
	"github.com/nordgraph/graphtool/pkg/render"
	"github.com/nordgraph/graphtool/pkg/shell"
	"github.com/nordgraph/graphtool/pkg/xmlutil"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

// flags holds the connection options every command shares. Populated from
// config file, then GRAPHTOOL_* environment, then command-line flags.
type flags struct {
	scheme   string
	host     string
	port     int
	user     string
	password string
	debug    bool
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	opts := &flags{}
	rootCmd := &cobra.Command{
		Use:     "graphtool",
		Short:   "Command-line client for Neo4j-style graph databases",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Long: `graphtool executes Cypher queries and bulk-data operations against a
remote graph database and renders results as text, CSV, TSV, JSON or Geoff.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !opts.debug {
				log.SetOutput(io.Discard)
			}
			cfg.Scheme = opts.scheme
			cfg.Host = opts.host
			cfg.Port = opts.port
			if opts.user != "" {
				cfg.User = opts.user
			}
			if opts.password != "" {
				cfg.Password = opts.password
			}
			return cfg.Validate()
		},
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&opts.scheme, "scheme", "S", cfg.Scheme, "Database URL scheme (http or https)")
	pf.StringVarP(&opts.host, "host", "H", cfg.Host, "Database host")
	pf.IntVarP(&opts.port, "port", "P", cfg.Port, "Database HTTP port")
	pf.StringVarP(&opts.user, "user", "U", "", "HTTP basic auth user")
	pf.StringVarP(&opts.password, "password", "W", "", "HTTP basic auth password")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging on stderr")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the remote server version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g := connect(cfg)
			v, err := g.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Neo4j "+v)
			return nil
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear all nodes and relationships",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return connect(cfg).Clear(cmd.Context())
		},
	})

	// One cypher command per output format, sharing the query/parameter
	// argument handling.
	for _, entry := range []struct {
		use, format string
	}{
		{"cypher", "text"},
		{"cypher-csv", "csv"},
		{"cypher-tsv", "tsv"},
		{"cypher-json", "json"},
		{"cypher-geoff", "geoff"},
	} {
		format := entry.format
		rootCmd.AddCommand(&cobra.Command{
			Use:   entry.use + " [query] [key=value...]",
			Short: fmt.Sprintf("Execute a Cypher query and output as %s", format),
			Long: fmt.Sprintf(`Execute a Cypher query and output as %s.

A query of "-" (or no query argument) reads the query text from stdin.
Trailing key=value arguments become bound query parameters.`, format),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCypher(cmd, connect(cfg), format, args)
			},
		})
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "geoff-insert [file]",
		Short: "Insert Geoff data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeoff(cmd, connect(cfg), args, false)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "geoff-merge [file]",
		Short: "Merge Geoff data",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeoff(cmd, connect(cfg), args, true)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "xml-cypher [file] [prefix=uri...]",
		Short: "Convert XML data to a Cypher CREATE statement",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runXML(cmd, args, xmlutil.ToCypher)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "xml-geoff [file] [prefix=uri...]",
		Short: "Convert XML data to Geoff data",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runXML(cmd, args, xmlutil.ToGeoff)
		},
	})

	shellCmd := &cobra.Command{
		Use:   "shell",
		Short: "Start an interactive shell",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			return runShell(cmd, cfg, format)
		},
	}
	shellCmd.Flags().StringP("format", "F", cfg.Format,
		fmt.Sprintf("Output format: %s", strings.Join(render.Formats(), ", ")))
	rootCmd.AddCommand(shellCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect builds the graph client, prompting for a password when a user was
// given without one and stdin is a terminal.
func connect(cfg *config.Config) *neo4j.Graph {
	user, password := cfg.User, cfg.Password
	if user != "" && password == "" && term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Password for %s: ", user)
		if entered, err := term.ReadPassword(int(os.Stdin.Fd())); err == nil {
			password = string(entered)
		}
		fmt.Fprintln(os.Stderr)
	}
	var opts []neo4j.Option
	if user != "" {
		opts = append(opts, neo4j.WithBasicAuth(user, password))
	}
	log.Printf("connecting to %s://%s:%d", cfg.Scheme, cfg.Host, cfg.Port)
	return neo4j.Dial(cfg.Scheme, cfg.Host, cfg.Port, opts...)
}

// splitArgs partitions arguments the way every data command expects: a token
// containing "=" and no space becomes a named parameter, everything else is
// positional.
func splitArgs(args []string) (positional []string, named map[string]any) {
	named = map[string]any{}
	for _, arg := range args {
		if strings.Contains(arg, "=") && !strings.Contains(arg, " ") {
			key, v, _ := strings.Cut(arg, "=")
			named[key] = v
			continue
		}
		positional = append(positional, arg)
	}
	return positional, named
}

func runCypher(cmd *cobra.Command, g *neo4j.Graph, format string, args []string) error {
	positional, params := splitArgs(args)
	if len(positional) > 1 {
		return fmt.Errorf("expected at most one query argument, got %d", len(positional))
	}
	query := ""
	if len(positional) == 1 {
		query = positional[0]
	}
	if query == "" || query == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("reading query from stdin: %w", err)
		}
		query = string(data)
	}
	rs, err := g.Execute(cmd.Context(), query, params)
	if err != nil {
		return err
	}
	return render.Write(cmd.OutOrStdout(), format, rs)
}

func runGeoff(cmd *cobra.Command, g *neo4j.Graph, args []string, merge bool) error {
	in, closeIn, err := openInput(cmd, args)
	if err != nil {
		return err
	}
	defer closeIn()

	sub, err := geoff.Load(in)
	if err != nil {
		return err
	}
	var bindings []geoff.Binding
	if merge {
		bindings, err = sub.MergeInto(cmd.Context(), g)
	} else {
		bindings, err = sub.InsertInto(cmd.Context(), g)
	}
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, b := range bindings {
		fmt.Fprintf(out, "%s\t%s\n", b.Name, b.URI)
	}
	return nil
}

func runXML(cmd *cobra.Command, args []string, convert func(io.Reader, map[string]string) (string, error)) error {
	positional, named := splitArgs(args)
	if len(positional) > 1 {
		return fmt.Errorf("expected at most one file argument, got %d", len(positional))
	}
	in, closeIn, err := openInput(cmd, positional)
	if err != nil {
		return err
	}
	defer closeIn()

	prefixes := make(map[string]string, len(named))
	for prefix, uri := range named {
		prefixes[prefix] = fmt.Sprintf("%v", uri)
	}
	out, err := convert(in, prefixes)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

// openInput returns the named file, or stdin when no file argument was
// given. The returned closer is safe on every path.
func openInput(cmd *cobra.Command, args []string) (io.Reader, func(), error) {
	if len(args) == 0 {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func runShell(cmd *cobra.Command, cfg *config.Config, format string) error {
	g := connect(cfg)
	streams := shell.IO{In: cmd.InOrStdin(), Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}
	sh := shell.New(g, streams, format)

	fmt.Fprintf(streams.Out, "graphtool shell %s (%s)\n", version, g.HostPort())
	fmt.Fprintln(streams.Out, "Type HELP for available commands")
	fmt.Fprintln(streams.Out)

	if f, ok := streams.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		reader := newLinerReader()
		defer reader.Close()
		return sh.Run(cmd.Context(), reader)
	}
	return sh.Run(cmd.Context(), shell.NewScannerReader(streams.In, streams.Out))
}

// linerReader adapts peterh/liner to the shell's LineReader, with history
// persisted across sessions.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	historyFile := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyFile = filepath.Join(home, ".graphtool_history")
		if f, err := os.Open(historyFile); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
	}
	return &linerReader{line: line, historyFile: historyFile}
}

func (r *linerReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		if err == liner.ErrPromptAborted {
			return "", io.EOF
		}
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

func (r *linerReader) Close() {
	if r.historyFile != "" {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}
