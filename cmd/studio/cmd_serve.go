package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	studio "github.com/grp06/openclaw-studio"
	"github.com/grp06/openclaw-studio/activity"
	"github.com/grp06/openclaw-studio/observe"
	"github.com/grp06/openclaw-studio/wire"
)

var serveFlags struct {
	listen string
	record string
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "127.0.0.1:3300", "HTTP listen address")
	serveCmd.Flags().StringVar(&serveFlags.record, "record", "", "append every event to this event log")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP view of the live observe and activity state",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ls, err := startLive(cmd, serveFlags.record)
	if err != nil {
		return err
	}
	defer ls.Close()

	store := observe.NewStore(ls.Client(), observe.StoreConfig{})
	defer store.Close()
	feed := activity.NewFeed(activity.FeedConfig{})
	unsubscribe := feed.Subscribe(ls.Client())
	defer unsubscribe()

	e := newEcho(&apiServer{conn: ls.conn, store: store, feed: feed})

	g, ctx := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		slog.Info("http server started", "listen", serveFlags.listen)
		if err := e.Start(serveFlags.listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// connectionState is the part of *studio.Connection the API reads.
type connectionState interface {
	State() studio.ConnectionState
}

type apiServer struct {
	conn  connectionState
	store *observe.Store
	feed  *activity.Feed
}

func newEcho(s *apiServer) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			slog.Debug("http request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))
	s.RegisterRoutes(e)
	return e
}

// RegisterRoutes mounts the API on e.
func (s *apiServer) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", s.health)
	api := e.Group("/api")
	api.GET("/connection", s.connection)
	api.GET("/observe", s.observe)
	api.GET("/observe/sessions", s.sessions)
	api.GET("/activity", s.activity)
	api.GET("/activity/agents", s.activityAgents)
}

type connectionResponse struct {
	studio.ConnectionState
	HasToken bool `json:"hasToken"`
}

// health reports 200 while the gateway is connected and 503 otherwise.
// GET /healthz
func (s *apiServer) health(c echo.Context) error {
	st := s.conn.State()
	code := http.StatusOK
	if st.Status != studio.StatusConnected {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, map[string]any{"status": st.Status})
}

// connection returns the resolved gateway settings. The token is never
// exposed.
// GET /api/connection
func (s *apiServer) connection(c echo.Context) error {
	st := s.conn.State()
	return c.JSON(http.StatusOK, connectionResponse{ConnectionState: st, HasToken: st.HasToken()})
}

// observe returns the observe state. ?limit=N keeps only the newest N
// entries.
// GET /api/observe
func (s *apiServer) observe(c echo.Context) error {
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	st := s.store.Snapshot()
	if limit > 0 && limit < len(st.Entries) {
		st.Entries = st.Entries[len(st.Entries)-limit:]
	}
	return c.JSON(http.StatusOK, st)
}

// GET /api/observe/sessions
func (s *apiServer) sessions(c echo.Context) error {
	return c.JSON(http.StatusOK, s.store.Snapshot().Sessions)
}

// activity returns feed events, newest first, filtered by ?agent= and a
// comma separated ?type=.
// GET /api/activity
func (s *apiServer) activity(c echo.Context) error {
	f := activity.Filter{AgentID: c.QueryParam("agent")}
	if types := c.QueryParam("type"); types != "" {
		for _, t := range strings.Split(types, ",") {
			f.Types = append(f.Types, wire.EventKind(strings.TrimSpace(t)))
		}
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return err
	}
	events := s.feed.Filtered(f)
	if limit > 0 && limit < len(events) {
		events = events[:limit]
	}
	return c.JSON(http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// GET /api/activity/agents
func (s *apiServer) activityAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"agents": s.feed.AgentIDs()})
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" must be a non-negative integer")
	}
	return n, nil
}
