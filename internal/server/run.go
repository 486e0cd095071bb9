package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger"
	"github.com/theritikchoure/logx"

	"github.com/isparth/Distributed-Systems/chunkdir/internal/cluster"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/httpapi"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/locstore"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/storage"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/raft/transporthttp"
	"github.com/isparth/Distributed-Systems/chunkdir/internal/replication"
)

// Run wires together the server components and starts listening.
func Run() error {
	cfg, err := ParseConfig(os.Args[1:])
	if err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	mode := "elections"
	if a.node == nil {
		mode = fmt.Sprintf("static leader %d", cfg.Leader)
	}
	logx.Logf("chunkdir node %d of %d on :%d (%s, max body %s)", logx.FGBLACK, logx.BGGREEN,
		cfg.Self, a.dir.Size(), cfg.Port, mode, cfg.MaxBody.HumanReadable())

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: a.handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Println("shutting down...")
		return srv.Shutdown(context.Background())
	}
}

// app is one assembled node: stores, role state, coordinator and the
// combined HTTP handler.
type app struct {
	dir     *cluster.Directory
	node    *raft.Node // nil in static mode
	coord   *replication.Coordinator
	store   locstore.Store
	db      *badger.DB
	handler http.Handler
}

func newApp(cfg Config) (*app, error) {
	dir, err := cluster.Parse(cfg.Peers, cfg.Self)
	if err != nil {
		return nil, err
	}
	if cfg.Leader >= dir.Size() {
		return nil, fmt.Errorf("-leader %d: %w", cfg.Leader, cluster.ErrUnknownMember)
	}

	a := &app{dir: dir}

	var stable storage.StableStore
	if cfg.DataDir != "" {
		a.db, err = badger.Open(badger.DefaultOptions(cfg.DataDir))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.DataDir, err)
		}
		a.store = locstore.NewBadgerStore(a.db)
		stable = storage.NewBadgerStableStore(a.db)
		log.Printf("[server] using badger store at %s (%d entries)", cfg.DataDir, a.store.Len())
	} else {
		a.store = locstore.NewMemStore()
		stable = storage.NewMemStableStore()
	}

	var auth *transporthttp.Authenticator
	if cfg.ClusterSecret != "" {
		auth = transporthttp.NewAuthenticator(cfg.ClusterSecret, cfg.Self)
	}
	tp := transporthttp.NewHTTPTransport(dir, auth)

	var role replication.RoleState
	var rpc transporthttp.RaftRPCHandler
	if cfg.Leader >= 0 {
		role = raft.NewStatic(cfg.Self, cfg.Leader, 1)
	} else {
		a.node, err = raft.NewNode(raft.Config{Directory: dir}, stable, tp)
		if err != nil {
			a.close()
			return nil, err
		}
		role = a.node
		rpc = a.node
	}

	a.coord = replication.New(role, dir, tp, a.store, replication.Config{
		PollTimeout:     cfg.PollTimeout,
		PollParallelism: cfg.PollParallelism,
	})

	// Combine API + peer RPC handlers
	mux := http.NewServeMux()
	mux.Handle("/raft/", transporthttp.NewRaftHTTPServer(rpc, a.coord, auth).Handler())
	mux.Handle("/", httpapi.New(a.coord, httpapi.Options{MaxBody: cfg.MaxBody}).Handler())
	a.handler = mux

	return a, nil
}

func (a *app) start(ctx context.Context) error {
	if a.node == nil {
		return nil
	}
	return a.node.Start(ctx)
}

func (a *app) close() error {
	if a.node != nil {
		a.node.Stop(context.Background())
	}
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
