// Package inspector serves diagnostic views of a running iteration session:
// a JSON status endpoint, Prometheus metrics, and a WebSocket feed pushing
// snapshots as the driver publishes them. It is a local observability
// surface, not a rendering or control interface.
package inspector

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fractalforge/coordplane/pkg/core"
	obsprom "github.com/fractalforge/coordplane/pkg/observability/prometheus"
	"github.com/fractalforge/coordplane/pkg/plane"
)

// Inspector exposes the latest published snapshot over HTTP and WebSocket.
type Inspector struct {
	addr   string
	wsAddr string
	logger core.Logger

	latest atomic.Pointer[plane.Snapshot]

	server   *fasthttp.Server
	wsServer *http.Server

	upgrader websocket.Upgrader
	mu       sync.Mutex
	clients  map[*websocket.Conn]*sync.Mutex // per-conn write lock
}

// New creates an Inspector. Empty addresses disable the corresponding
// listener; with both empty the inspector is inert and Publish is cheap.
func New(addr, wsAddr string, logger core.Logger) *Inspector {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Inspector{
		addr:   addr,
		wsAddr: wsAddr,
		logger: logger,
		upgrader: websocket.Upgrader{
			// Local diagnostic endpoint; origin checks add nothing.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// Start brings up the configured listeners. Listener errors after startup
// are logged, not returned; the engine must not die with its diagnostics.
func (i *Inspector) Start() {
	if i.addr != "" {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(
			promhttp.HandlerFor(obsprom.DefaultRegistry, promhttp.HandlerOpts{}))

		i.server = &fasthttp.Server{
			Name:    "coordplane-inspector",
			Handler: i.route(metricsHandler),
		}
		go func() {
			if err := i.server.ListenAndServe(i.addr); err != nil {
				i.logger.Errorf("inspector: http listener on %s: %v", i.addr, err)
			}
		}()
	}

	if i.wsAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/ws", i.handleWebSocket)
		i.wsServer = &http.Server{Addr: i.wsAddr, Handler: mux}
		go func() {
			if err := i.wsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				i.logger.Errorf("inspector: ws listener on %s: %v", i.wsAddr, err)
			}
		}()
	}
}

// Stop shuts down the listeners and closes WebSocket clients.
func (i *Inspector) Stop(ctx context.Context) {
	if i.server != nil {
		if err := i.server.ShutdownWithContext(ctx); err != nil {
			i.logger.Warnf("inspector: http shutdown: %v", err)
		}
	}
	if i.wsServer != nil {
		if err := i.wsServer.Shutdown(ctx); err != nil {
			i.logger.Warnf("inspector: ws shutdown: %v", err)
		}
	}

	i.mu.Lock()
	for conn := range i.clients {
		conn.Close()
	}
	i.clients = make(map[*websocket.Conn]*sync.Mutex)
	i.mu.Unlock()
}

func (i *Inspector) route(metricsHandler fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/status":
			i.handleStatus(ctx)
		case "/live":
			ctx.SetContentType("application/json")
			ctx.SetBodyString(`{"status":"up"}`)
		case "/metrics":
			metricsHandler(ctx)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}
}

func (i *Inspector) handleStatus(ctx *fasthttp.RequestCtx) {
	s := i.latest.Load()
	if s == nil {
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		ctx.SetContentType("application/json")
		ctx.SetBodyString(`{"error":"no snapshot published yet"}`)
		return
	}

	body, err := json.Marshal(s)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (i *Inspector) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := i.upgrader.Upgrade(w, r, nil)
	if err != nil {
		i.logger.Errorf("inspector: websocket upgrade failed: %v", err)
		return
	}

	i.mu.Lock()
	i.clients[conn] = &sync.Mutex{}
	i.mu.Unlock()
	i.logger.Debugf("inspector: websocket client %s connected", conn.RemoteAddr())

	// Send the current state immediately so a client need not wait for
	// the next batch.
	if s := i.latest.Load(); s != nil {
		i.writeTo(conn, s)
	}

	// Reader loop exists only to observe the close.
	go func() {
		defer i.dropClient(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (i *Inspector) dropClient(conn *websocket.Conn) {
	i.mu.Lock()
	delete(i.clients, conn)
	i.mu.Unlock()
	conn.Close()
}

func (i *Inspector) writeTo(conn *websocket.Conn, s *plane.Snapshot) {
	i.mu.Lock()
	wl, ok := i.clients[conn]
	i.mu.Unlock()
	if !ok {
		return
	}

	wl.Lock()
	err := conn.WriteJSON(s)
	wl.Unlock()
	if err != nil {
		i.logger.Debugf("inspector: dropping websocket client %s: %v", conn.RemoteAddr(), err)
		i.dropClient(conn)
	}
}

// Publish stores the snapshot for /status and pushes it to connected
// WebSocket clients. Called by the driving goroutine between batches.
func (i *Inspector) Publish(s plane.Snapshot) {
	i.latest.Store(&s)

	i.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(i.clients))
	for conn := range i.clients {
		conns = append(conns, conn)
	}
	i.mu.Unlock()

	for _, conn := range conns {
		i.writeTo(conn, &s)
	}
}
