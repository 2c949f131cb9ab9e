// Command hoplited runs one node of the fabric: it loads a config file,
// wires a hopnode.Node against either a real directory URL or, with
// -standalone, an in-process directory/memdirectory.Backend, and serves
// until signaled.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"context"
	"flag"
	"net/http/httptest"
	"os"
	"os/signal"
	"syscall"

	"github.com/nwtnni/hoplite-go/cluster/memblobstore"
	"github.com/nwtnni/hoplite-go/cmn"
	"github.com/nwtnni/hoplite-go/cmn/nlog"
	"github.com/nwtnni/hoplite-go/directory/memdirectory"
	"github.com/nwtnni/hoplite-go/hopnode"
)

func main() {
	configPath := flag.String("config", "", "path to config.json")
	standalone := flag.Bool("standalone", false, "run against an in-process directory instead of -config's directory_url")
	flag.Parse()

	cfg := cmn.Default()
	if *configPath != "" {
		loaded, err := cmn.LoadConfig(*configPath)
		if err != nil {
			nlog.Fatalln("hoplited:", err)
		}
		cfg = loaded
	}

	directoryURL := cfg.Net.DirectoryURL
	if *standalone {
		backend := memdirectory.New(cfg.Net.NotifyPort)
		srv := httptest.NewServer(backend.Handler())
		defer srv.Close()
		directoryURL = srv.URL
		nlog.Infoln("hoplited: standalone directory listening at", srv.URL)
	}
	if directoryURL == "" {
		nlog.Fatalln("hoplited: no directory configured; set net.directory_url or pass -standalone")
	}

	node := hopnode.New(cfg, memblobstore.New(), directoryURL)
	if err := node.Start(context.Background()); err != nil {
		nlog.Fatalln("hoplited:", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		nlog.Infoln("hoplited: received", sig, "shutting down")
	case err := <-node.Err():
		nlog.Errorln("hoplited: background failure:", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Control.BusyRetryInterval.D()*100)
	defer cancel()
	if err := node.Stop(ctx); err != nil {
		nlog.Errorln("hoplited: shutdown:", err)
	}
}
