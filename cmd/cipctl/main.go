// Command cipctl connects to one Logix controller, lists or transfers tags,
// and optionally runs as a poll-loop daemon republishing snapshots to MQTT,
// Kafka, a Redis/Valkey cache and an HTTP/WebSocket gateway. Flag layout and
// the signal-driven shutdown path are grounded on the teacher's
// cmd/warlogix/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/amrhady2/go-logix-cip/cache"
	"github.com/amrhady2/go-logix-cip/cip"
	"github.com/amrhady2/go-logix-cip/config"
	"github.com/amrhady2/go-logix-cip/gateway"
	"github.com/amrhady2/go-logix-cip/logging"
	"github.com/amrhady2/go-logix-cip/logix"
	"github.com/amrhady2/go-logix-cip/publish"
	"github.com/amrhady2/go-logix-cip/publish/kafka"
	"github.com/amrhady2/go-logix-cip/publish/mqtt"
	"github.com/amrhady2/go-logix-cip/transport"
	"github.com/redis/go-redis/v9"
)

var (
	configPath  = flag.String("config", "cipctl.yaml", "path to YAML configuration file")
	showVersion = flag.Bool("version", false, "show version and exit")
	daemonMode  = flag.Bool("d", false, "run the poll loop and republish snapshots until interrupted")
	listTags    = flag.Bool("list", false, "enumerate the controller's tag list and exit")
	readTagName = flag.String("read", "", "read a single tag and print its value")
	writeTag    = flag.String("write", "", "tag=value to write, e.g. -write Counter=42")
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("cipctl %s\n", Version)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLogger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening log: %v\n", err)
		os.Exit(1)
	}
	if closeLogger != nil {
		defer closeLogger.Close()
	}

	tr, err := transport.New(cfg.PLC.Address,
		transport.WithTimeout(5*time.Second),
		transport.WithLogger(logger),
		transport.WithForwardOpenConfig(transport.DefaultForwardOpenConfig(cfg.PLC.Slot)),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error connecting: %v\n", err)
		os.Exit(1)
	}
	defer tr.Close()

	if err := tr.ForwardOpen(); err != nil {
		fmt.Fprintf(os.Stderr, "forward open failed: %v\n", err)
		os.Exit(1)
	}

	client := logix.NewClient(tr, logix.WithLogger(logger))

	switch {
	case *listTags:
		runListTags(client)
		return
	case *readTagName != "":
		runReadTag(client, *readTagName)
		return
	case *writeTag != "":
		runWriteTag(client, *writeTag)
		return
	case *daemonMode:
		runDaemon(cfg, client, logger)
		return
	default:
		flag.Usage()
	}
}

func buildLogger(cfg config.LoggingConfig) (logging.Logger, *os.File, error) {
	if cfg.FilePath == "" {
		return logging.NopLogger{}, nil, nil
	}
	wl, f, err := logging.NewFileLogger(cfg.FilePath, cfg.HexDump)
	if err != nil {
		return nil, nil, err
	}
	return wl, f, nil
}

func runListTags(client *logix.Client) {
	tags, err := client.GetTagList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error listing tags: %v\n", err)
		os.Exit(1)
	}
	for _, t := range tags {
		if t.Kind == logix.KindStruct {
			fmt.Printf("%-32s STRUCT(template=%d)\n", t.Name, t.TemplateInstanceID)
		} else {
			fmt.Printf("%-32s %s\n", t.Name, t.DataType)
		}
	}
}

func runReadTag(client *logix.Client, name string) {
	res, err := client.ReadTag(name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error reading %s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("%s = %v (%s)\n", res.Name, res.Value, res.Type)
}

func runWriteTag(client *logix.Client, spec string) {
	name, raw, ok := splitAssignment(spec)
	if !ok {
		fmt.Fprintf(os.Stderr, "invalid -write argument %q, expected tag=value\n", spec)
		os.Exit(1)
	}
	value, typ := inferValue(raw)
	if err := client.WriteTag(name, value, typ); err != nil {
		fmt.Fprintf(os.Stderr, "error writing %s: %v\n", name, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s = %v\n", name, value)
}

func splitAssignment(spec string) (name, value string, ok bool) {
	for i := 0; i < len(spec); i++ {
		if spec[i] == '=' {
			return spec[:i], spec[i+1:], true
		}
	}
	return "", "", false
}

func inferValue(raw string) (interface{}, cip.CipType) {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i, cip.TypeDINT
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f, cip.TypeREAL
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b, cip.TypeBOOL
	}
	return raw, cip.TypeSTRING
}

// runDaemon drives the poll loop: read the configured tags on every tick,
// fan the snapshot out to every enabled sink, and serve the gateway until a
// termination signal arrives.
func runDaemon(cfg *config.Config, client *logix.Client, logger logging.Logger) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []publish.Sink
	if cfg.MQTT.Enabled {
		p, err := mqtt.New(mqtt.Config{
			BrokerURL: cfg.MQTT.BrokerURL,
			ClientID:  cfg.MQTT.ClientID,
			RootTopic: cfg.MQTT.RootTopic,
			Username:  cfg.MQTT.Username,
			Password:  cfg.MQTT.Password,
		}, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mqtt connect failed: %v\n", err)
			os.Exit(1)
		}
		defer p.Close()
		sinks = append(sinks, p)
	}
	if cfg.Kafka.Enabled {
		p := kafka.New(kafka.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
		defer p.Close()
		sinks = append(sinks, p)
	}

	var snapshotCache *cache.SnapshotCache
	if cfg.Cache.Enabled {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.Address})
		defer rdb.Close()
		snapshotCache = cache.New(rdb, cfg.Cache.TTL)
	}

	var gw *gateway.Server
	if cfg.Gateway.Enabled {
		gw = gateway.New(cfg.PLC.Name, client, snapshotCache, gateway.Config{
			OperatorUser:  cfg.Gateway.OperatorUser,
			OperatorHash:  cfg.Gateway.OperatorHash,
			SessionSecret: cfg.Gateway.SessionSecret,
		}, logger)
		go func() {
			if err := gw.Serve(ctx, cfg.Gateway.ListenAddress); err != nil {
				logger.LogError("gateway", err)
			}
		}()
	}

	if tags, err := client.GetTagList(); err == nil && gw != nil {
		gw.SetTags(tags)
	}

	ticker := time.NewTicker(cfg.PLC.PollRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			values := client.Snapshot(cfg.PLC.Tags)
			if len(values) == 0 {
				continue
			}
			for _, sink := range sinks {
				if err := sink.Publish(cfg.PLC.Name, values); err != nil {
					logger.LogError("publish", err)
				}
			}
			if snapshotCache != nil {
				if err := snapshotCache.SetAll(ctx, cfg.PLC.Name, values); err != nil {
					logger.LogError("cache", err)
				}
			}
			if gw != nil {
				gw.Broadcast(values)
			}
		}
	}
}
