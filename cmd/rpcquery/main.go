package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	rpcsession "github.com/goliatone/go-rpcsession"
	"github.com/goliatone/go-rpcsession/adapters/gologger"
	"github.com/goliatone/go-rpcsession/config"
	"github.com/goliatone/go-rpcsession/core"
	"github.com/goliatone/go-rpcsession/format"
	"github.com/goliatone/go-rpcsession/soap"
)

const defaultQuery = "select Id from Subscription where Status = 'Active'"

type cli struct {
	Config      string        `help:"Client config file (yaml, toml or json)." short:"c" required:"" type:"path"`
	Format      string        `help:"Output format." short:"f" enum:"json,xml,cbor" default:"json"`
	Query       string        `help:"Query to run." short:"q" default:"${default_query}"`
	All         bool          `help:"Follow query locators until the result set is done."`
	LogLevel    string        `help:"Log level." enum:"debug,info,warn,error" default:"warn"`
	AppKey      string        `help:"Key sealing persisted session tokens." env:"RPCSESSION_APP_KEY"`
	KeyVersion  int           `help:"Version of --app-key." default:"1"`
	PreviousKey string        `help:"Key of the previous version, still accepted when reading stored sessions." env:"RPCSESSION_PREVIOUS_APP_KEY"`
	PruneBefore time.Duration `help:"Delete journal attempts older than this duration and exit, e.g. 720h."`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "rpcquery: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	var opts cli
	exited := false
	parser, err := kong.New(&opts,
		kong.Name("rpcquery"),
		kong.Description("Run one query through a session-managed RPC client."),
		kong.Vars{"default_query": defaultQuery},
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) { exited = true }),
	)
	if err != nil {
		return err
	}
	if _, err := parser.Parse(args); err != nil {
		return err
	}
	if exited {
		return nil
	}

	logger := gologger.NewTextLogger(stderr, opts.LogLevel)
	outFormat, err := format.Parse(opts.Format)
	if err != nil {
		return err
	}
	negotiator := format.NewNegotiator()
	if err := negotiator.Use(outFormat); err != nil {
		return err
	}

	loader := config.NewFileLoader(opts.Config)
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return err
	}

	clientOpts := []rpcsession.Option{
		rpcsession.WithLoggerProvider(logger),
		rpcsession.WithConfigProvider(core.NewCfgxConfigProvider(loader)),
	}
	journal, err := openJournal(ctx, config.Section(raw, "journal"), sessionKeys{active: opts.AppKey, version: opts.KeyVersion, previous: opts.PreviousKey})
	if err != nil {
		return err
	}
	if journal != nil {
		defer journal.Close()
		clientOpts = append(clientOpts, journal.options()...)
		logger.Debug("attempt journal enabled", "driver", journal.driver)
	}
	if opts.PruneBefore > 0 {
		if journal == nil {
			return fmt.Errorf("--prune-before needs a journal driver in the config file")
		}
		deleted, err := journal.prune(ctx, opts.PruneBefore, time.Now(), logger.GetLogger("journal"))
		if err != nil {
			return err
		}
		return writeOutput(stdout, negotiator, map[string]any{"pruned": deleted})
	}

	client, err := rpcsession.New(rpcsession.Config{}, clientOpts...)
	if err != nil {
		return err
	}

	output, err := runQuery(ctx, client, opts.Query, opts.All)
	if err != nil {
		return err
	}
	return writeOutput(stdout, negotiator, output)
}

func writeOutput(stdout io.Writer, negotiator *format.Negotiator, output map[string]any) error {
	body, err := negotiator.Encode(output)
	if err != nil {
		return err
	}
	if _, err := stdout.Write(body); err != nil {
		return err
	}
	_, err = io.WriteString(stdout, "\n")
	return err
}

// runQuery runs queryString and, when follow is set, pages through
// queryMore until the remote reports done.
func runQuery(ctx context.Context, client *rpcsession.Client, queryString string, follow bool) (map[string]any, error) {
	result, err := client.Query(ctx, queryString)
	if err != nil {
		return nil, err
	}
	output := map[string]any{
		"operation": result.Operation,
		"call_id":   result.CallID,
		"attempts":  result.Attempts,
	}
	page, ok := result.Payload.(*soap.Result)
	if !ok {
		output["payload"] = fmt.Sprintf("%v", result.Payload)
		return output, nil
	}

	records := append([]map[string]string(nil), page.Records...)
	for follow && !isDone(page) {
		locator, _ := page.Field("queryLocator")
		if strings.TrimSpace(locator) == "" {
			break
		}
		next, err := client.QueryMore(ctx, locator)
		if err != nil {
			return nil, err
		}
		nextPage, ok := next.Payload.(*soap.Result)
		if !ok {
			break
		}
		records = append(records, nextPage.Records...)
		page = nextPage
	}

	for key, value := range page.Fields {
		if key == "queryLocator" {
			continue
		}
		output[key] = value
	}
	output["records"] = records
	output["size"] = strconv.Itoa(len(records))
	return output, nil
}

func isDone(page *soap.Result) bool {
	done, ok := page.Field("done")
	if !ok {
		return true
	}
	value, err := strconv.ParseBool(strings.TrimSpace(done))
	return err != nil || value
}
