// Command ctfdump is a small front-end demonstrating the
// source->muxer->sink graph over a directory of trace stream files: it
// wires a FileSource's discovered streams into a Muxer and prints the
// merged, time-ordered message stream to stdout. CLI argument parsing
// proper is intentionally minimal; this exists to drive the graph
// against a real trace directory, not to be a general-purpose decoder.
package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/tracegraph/ctf/errs"
	"github.com/tracegraph/ctf/graph"
	"github.com/tracegraph/ctf/index"
	"github.com/tracegraph/ctf/message"
	"github.com/tracegraph/ctf/muxer"
	"github.com/tracegraph/ctf/paramtree"
	"github.com/tracegraph/ctf/sink"
	"github.com/tracegraph/ctf/source"
	"github.com/tracegraph/ctf/stats"
	"github.com/tracegraph/ctf/value"
)

func main() {
	app := cli.NewApp()
	app.Name = "ctfdump"
	app.Usage = "decode and print a CTF-style binary trace directory"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.StringSliceFlag{Name: "input", Usage: "trace stream directory (repeatable)"},
		cli.StringFlag{Name: "cache", Usage: "packet-index cache file (speeds up repeat runs)"},
		cli.IntFlag{Name: "batch-size", Value: 64, Usage: "messages pulled per graph turn"},
		cli.Int64Flag{Name: "clock-offset-s", Usage: "clock-class-offset-s override"},
		cli.Int64Flag{Name: "clock-offset-ns", Usage: "clock-class-offset-ns override"},
		cli.BoolFlag{Name: "force-unix-epoch", Usage: "force every default clock class absolute"},
		cli.StringFlag{Name: "metrics-addr", Usage: "serve Prometheus metrics at this address, e.g. :9090"},
		cli.BoolFlag{Name: "no-color"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	inputs := c.StringSlice("input")
	if len(inputs) == 0 {
		return cli.NewExitError("ctfdump: at least one -input directory is required", 1)
	}

	trace, _, err := demoTraceClass()
	if err != nil {
		return err
	}

	var cache *index.Cache
	if p := c.String("cache"); p != "" {
		cache, err = index.OpenCache(p)
		if err != nil {
			return err
		}
		defer cache.Close()
	}

	params, err := buildSourceParams(c, inputs)
	if err != nil {
		return err
	}
	defer params.Unref()

	g := graph.New()
	fsrc := source.New(trace, cache)
	sourceHandle, err := g.AddSourceComponent("source", fsrc, params)
	if err != nil {
		return err
	}

	mux := muxer.New()
	muxHandle, err := g.AddFilterComponent("muxer", mux, nil)
	if err != nil {
		return err
	}
	for _, p := range sourceHandle.OutputPorts() {
		mp, err := mux.AddInputPort()
		if err != nil {
			return err
		}
		if err := g.ConnectPorts(p, mp); err != nil {
			return err
		}
	}

	reg := stats.New()
	if addr := c.String("metrics-addr"); addr != "" {
		go func() {
			http.Handle("/metrics", reg.Handler())
			_ = http.ListenAndServe(addr, nil)
		}()
	}

	printer := newPrinter(!c.Bool("no-color"), os.Stdout)
	batchSize := c.Int("batch-size")

	var sinkPort *graph.Port
	s := sink.New(nil,
		func(_ any, port *graph.Port) error {
			batch, err := port.Next(batchSize)
			if err != nil {
				return err
			}
			reg.ObserveMessages(batch)
			for _, m := range batch {
				printer.print(m)
			}
			return nil
		},
		func(_ any, port *graph.Port) error {
			sinkPort = port
			return nil
		},
		nil,
	)
	if _, err := g.AddSinkComponent("sink", s, nil); err != nil {
		return err
	}

	muxOut, ok := muxHandle.OutputPort("out")
	if !ok {
		return errs.New(errs.InvalidArgument, "ctfdump: muxer has no output port")
	}
	if err := g.ConnectPorts(muxOut, sinkPort); err != nil {
		return err
	}

	for {
		start := time.Now()
		err := g.RunOnce()
		reg.ObserveRunOnce(time.Since(start), err)
		if errs.IsEnd(err) {
			break
		}
		if err != nil && !errs.IsAgain(err) {
			_ = g.Finalize()
			return err
		}
		if errs.IsAgain(err) {
			time.Sleep(time.Millisecond)
		}
	}

	return g.Finalize()
}

type printer struct {
	w                     *os.File
	kindColor, fieldColor func(a ...any) string
}

func newPrinter(useColor bool, w *os.File) *printer {
	if !useColor {
		return &printer{w: w, kindColor: fmt.Sprint, fieldColor: fmt.Sprint}
	}
	return &printer{
		w:          w,
		kindColor:  color.New(color.FgHiCyan).SprintFunc(),
		fieldColor: color.New(color.FgHiBlue).SprintFunc(),
	}
}

func (p *printer) print(m *message.Message) {
	tsNS, err := m.EffectiveTimeNS()
	ts := "?"
	if err == nil {
		ts = time.Unix(0, tsNS).UTC().Format(time.RFC3339Nano)
	}
	switch m.Kind {
	case message.Event:
		fmt.Fprintf(p.w, "[%s] %s %s %s\n", ts, p.kindColor(m.Kind.String()), p.fieldColor(eventName(m)), formatPayload(m.Payload))
	default:
		fmt.Fprintf(p.w, "[%s] %s\n", ts, p.kindColor(m.Kind.String()))
	}
}

func eventName(m *message.Message) string {
	if m.EventClass == nil {
		return "?"
	}
	if m.EventClass.Name != "" {
		return m.EventClass.Name
	}
	return fmt.Sprintf("id=%d", m.EventClass.ID)
}

func formatPayload(v value.Value) string {
	if v == nil {
		return ""
	}
	s, err := paramtree.Format(v)
	if err != nil {
		return ""
	}
	return s
}

func buildSourceParams(c *cli.Context, inputs []string) (*value.MapValue, error) {
	params := value.NewMap()
	inputsArr, _ := value.AsArray(value.NewArray())
	for _, in := range inputs {
		sv := value.NewString(in)
		err := inputsArr.Append(sv)
		sv.Unref()
		if err != nil {
			inputsArr.Unref()
			params.Unref()
			return nil, err
		}
	}
	if err := params.Set("inputs", inputsArr); err != nil {
		inputsArr.Unref()
		params.Unref()
		return nil, err
	}
	inputsArr.Unref()

	if v := c.Int64("clock-offset-s"); v != 0 {
		iv := value.NewInt(v)
		err := params.Set("clock-class-offset-s", iv)
		iv.Unref()
		if err != nil {
			params.Unref()
			return nil, err
		}
	}
	if v := c.Int64("clock-offset-ns"); v != 0 {
		iv := value.NewInt(v)
		err := params.Set("clock-class-offset-ns", iv)
		iv.Unref()
		if err != nil {
			params.Unref()
			return nil, err
		}
	}
	if c.Bool("force-unix-epoch") {
		bv := value.NewBool(true)
		err := params.Set("force-clock-class-origin-unix-epoch", bv)
		bv.Unref()
		if err != nil {
			params.Unref()
			return nil, err
		}
	}
	return params, nil
}
