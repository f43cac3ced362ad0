package bootstrap_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/logos-network/blockcore/bcrypto"
	"github.com/logos-network/blockcore/blockcache"
	"github.com/logos-network/blockcore/bootstrap"
	"github.com/logos-network/blockcore/core"
	"github.com/logos-network/blockcore/executor"
	"github.com/logos-network/blockcore/internal/testutil"
	"github.com/logos-network/blockcore/pending"
	"github.com/logos-network/blockcore/writequeue"
)

func signedRB(delegate uint8, seq uint32, previous core.Hash) *core.RequestBlock {
	rb := &core.RequestBlock{PrimaryDelegate: delegate, Sequence: seq, Previous: previous}
	rb.Hash = bcrypto.ComputeHash(rb.MarshalSigningBody())
	return rb
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// TestBootstrapPullsMissingRequestBlocks exercises a full client/server
// round trip over a loopback TCP connection: the server's store already
// has a two-block delegate-0 RB chain, the client's store is empty, and
// a frontier exchange followed by one pull should leave both blocks
// committed (or queued for commit) in the client's write queue.
func TestBootstrapPullsMissingRequestBlocks(t *testing.T) {
	serverStore := testutil.NewStore()

	rb0 := signedRB(0, 0, core.Hash{})
	rb1 := signedRB(0, 1, rb0.Hash)
	tx := serverStore.Begin()
	tx.PutRequestBlock(rb0)
	tx.PutRequestBlock(rb1)
	if err := tx.SetBatchTip(0, core.Tip{Sequence: 1, Digest: rb1.Hash}); err != nil {
		t.Fatalf("seed batch tip: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	server := bootstrap.NewServer(ln, serverStore, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go server.Serve(ctx)

	clientStore := testutil.NewStore()
	clientExec := executor.New(4)
	defer clientExec.Close()
	clientQueue := writequeue.New(clientStore, bcrypto.AlwaysValidVerifier{}, clientExec)
	clientQueue.Start()
	defer clientQueue.Stop()
	clientContainer := pending.New()
	clientCache := blockcache.New(clientContainer, clientQueue, clientExec)

	attempt := bootstrap.New(bootstrap.Config{}, clientCache, clientStore)

	addr := ln.Addr().String()
	if err := attempt.Run(ctx, []string{addr}); err != nil {
		t.Fatalf("bootstrap run: %v", err)
	}

	waitUntil(t, 2*time.Second, func() bool {
		return clientQueue.BlockExists(rb0.Hash, core.KindRB) && clientQueue.BlockExists(rb1.Hash, core.KindRB)
	})
}
