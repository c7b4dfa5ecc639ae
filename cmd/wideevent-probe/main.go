// Command wideevent-probe emits one wide event through the configured
// delivery chain. It is handy for checking endpoints and for replaying the
// durable queue: every run first retries whatever earlier runs left behind.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"docledger/internal/cli"
	applog "docledger/internal/log"
	"docledger/internal/transport"
)

// attrFlag collects repeated -attr key=value flags.
type attrFlag map[string]string

func (a attrFlag) String() string {
	pairs := make([]string, 0, len(a))
	for k, v := range a {
		pairs = append(pairs, k+"="+v)
	}
	return strings.Join(pairs, ",")
}

func (a attrFlag) Set(s string) error {
	key, value, ok := strings.Cut(s, "=")
	if !ok || key == "" {
		return fmt.Errorf("attribute %q must be key=value", s)
	}
	a[key] = value
	return nil
}

func main() {
	attrs := attrFlag{}
	eventType := flag.String("type", "page_view", "event type")
	userID := flag.String("user", "", "user id attached to the event")
	errMsg := flag.String("error", "", "record an error with this message")
	beacon := flag.Bool("beacon", false, "send with the fire-and-forget beacon instead of flushing")
	get := flag.String("get", "", "API path to GET with the traced client before sending, e.g. /documents")
	wait := flag.Duration("wait", 2*time.Second, "how long to wait for background deliveries")
	flag.Var(attrs, "attr", "attribute as key=value (repeatable)")
	flag.Parse()

	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()

	store, err := cli.OpenStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open local storage", applog.FieldError, err)
		os.Exit(1)
	}
	defer store.Close()

	client := cli.NewWideEventClient(cfg, store, logger)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout+*wait)
	defer cancel()

	// Also beacons the event if the process is interrupted before flushing.
	client.WatchSignals(ctx)

	w := client.New()
	defer w.Recover(ctx)
	w.SetEventType(*eventType)
	if *userID != "" {
		w.SetUser(*userID)
	}
	for k, v := range attrs {
		w.Log(k, v)
	}
	if *errMsg != "" {
		w.LogError(errors.New(*errMsg))
	}

	if *get != "" {
		traced := &http.Client{
			Timeout:   cfg.HTTPTimeout,
			Transport: &transport.TraceRoundTripper{Source: w},
		}
		if resp, err := traced.Get(strings.TrimSuffix(cfg.APIBaseURL, "/") + *get); err == nil {
			resp.Body.Close()
		}
	}

	traceID := w.TraceID()
	if *beacon {
		client.Unload()
		// Beacons run detached; give them a moment before exiting.
		time.Sleep(*wait)
	} else {
		w.Flush(ctx)
	}

	waitDone := make(chan struct{})
	go func() {
		client.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(*wait):
		logger.Warn("Background deliveries still running at exit")
	}

	logger.Info("Wide event emitted",
		applog.FieldTraceID, traceID,
		applog.FieldEventType, *eventType,
		applog.FieldQueueLength, client.Queue().Len(context.Background()))
	fmt.Println(traceID)
}
