package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dotpix/dotpix-api/internal/auth"
	"github.com/dotpix/dotpix-api/internal/database"
	"github.com/dotpix/dotpix-api/internal/escrow"
	"github.com/dotpix/dotpix-api/internal/lp"
	"github.com/dotpix/dotpix-api/internal/orders"
	"github.com/dotpix/dotpix-api/internal/pix"
	"github.com/dotpix/dotpix-api/internal/rates"
	"github.com/dotpix/dotpix-api/internal/types"
	"github.com/dotpix/dotpix-api/pkg/middleware"
)

const (
	minOrders     = 10
	maxOrders     = 60
	numWorkers    = 4
	serverAddress = "http://localhost:8080"
	jwtSecret     = "simulation-secret-key"
)

// init configures the logger for the simulation with pretty printing and timestamp
func init() {
	// Configure pretty logging
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	log.Logger = zerolog.New(output).With().Timestamp().Logger()
}

// routeStats tracks performance statistics for an API endpoint
type routeStats struct {
	name       string
	durations  []time.Duration
	totalCalls int
	failures   int
}

// addDuration records a new duration measurement for the route
func (rs *routeStats) addDuration(d time.Duration) {
	rs.durations = append(rs.durations, d)
	rs.totalCalls++
}

// calculate computes performance statistics from recorded durations
// Returns min, max, mean, median, 95th percentile, and 99th percentile durations
func (rs *routeStats) calculate() (min, max, mean, median, p95, p99 time.Duration) {
	if len(rs.durations) == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	// Sort durations for percentile calculations
	sort.Slice(rs.durations, func(i, j int) bool {
		return rs.durations[i] < rs.durations[j]
	})

	min = rs.durations[0]
	max = rs.durations[len(rs.durations)-1]

	// Calculate mean
	var sum time.Duration
	for _, d := range rs.durations {
		sum += d
	}
	mean = sum / time.Duration(len(rs.durations))

	// Calculate median
	median = rs.durations[len(rs.durations)/2]

	// Calculate percentiles
	p95idx := int(math.Ceil(float64(len(rs.durations))*0.95)) - 1
	p99idx := int(math.Ceil(float64(len(rs.durations))*0.99)) - 1
	p95 = rs.durations[p95idx]
	p99 = rs.durations[p99idx]

	return
}

// simulationClient handles HTTP communication with the exchange API on
// behalf of one wallet.
type simulationClient struct {
	baseURL   string
	wallet    string
	authToken string
	client    *http.Client
	stats     map[string]*routeStats
}

// newSimulationClient authenticates a wallet against the API and prepares
// performance tracking.
func newSimulationClient(wallet string, stats map[string]*routeStats) (*simulationClient, error) {
	sc := &simulationClient{
		baseURL: serverAddress,
		wallet:  wallet,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		stats: stats,
	}

	token, err := sc.authenticate()
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}
	sc.authToken = token

	return sc, nil
}

// authenticate performs wallet authentication and returns a JWT token
func (sc *simulationClient) authenticate() (string, error) {
	start := time.Now()
	defer func() {
		sc.stats["auth"].addDuration(time.Since(start))
	}()

	credentials := map[string]string{
		"wallet_address": sc.wallet,
		"message":        "login to dotpix",
		"signature":      "0xsimulated",
	}

	body, err := json.Marshal(credentials)
	if err != nil {
		return "", err
	}

	resp, err := sc.client.Post(
		fmt.Sprintf("%s/api/v1/auth/login", sc.baseURL),
		"application/json",
		bytes.NewBuffer(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("authentication failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Data struct {
			Token string `json:"jwt_token"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}

	return result.Data.Token, nil
}

// call performs an authenticated JSON request and decodes the standard
// response envelope into out.
func (sc *simulationClient) call(statKey, method, path string, payload, out interface{}) error {
	start := time.Now()
	defer func() {
		sc.stats[statKey].addDuration(time.Since(start))
	}()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, sc.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+sc.authToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		sc.stats[statKey].failures++
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}
	log.Debug().Str("path", path).Str("response", string(respBody)).Msg("API response")

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		sc.stats[statKey].failures++
		return fmt.Errorf("%s %s failed with status %d: %s", method, path, resp.StatusCode, string(respBody))
	}

	if out != nil {
		envelope := struct {
			Success bool            `json:"success"`
			Data    json.RawMessage `json:"data"`
		}{}
		if err := json.Unmarshal(respBody, &envelope); err != nil {
			return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
		}
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w, body: %s", err, string(respBody))
		}
	}

	return nil
}

// createOrder submits a new SELL order and returns its ref.
func (sc *simulationClient) createOrder(dotAmount decimal.Decimal, pixKey string) (*types.Order, error) {
	payload := map[string]interface{}{
		"order_type": types.OrderTypeSell,
		"dot_amount": dotAmount,
		"pix_key":    pixKey,
	}
	var order types.Order
	if err := sc.call("create", "POST", "/api/v1/orders", payload, &order); err != nil {
		return nil, err
	}
	if order.OrderRef == "" {
		return nil, fmt.Errorf("no order ref in response")
	}
	return &order, nil
}

// registerLP registers the wallet as a liquidity provider.
func (sc *simulationClient) registerLP(pixKey string) error {
	payload := map[string]interface{}{
		"pix_key":            pixKey,
		"pix_key_type":       "email",
		"min_order_size_usd": "1",
		"max_order_size_usd": "100000",
	}
	return sc.call("lp_register", "POST", "/api/v1/lp/register", payload, nil)
}

func (sc *simulationClient) acceptOrder(orderRef string) (*types.Order, error) {
	var order types.Order
	err := sc.call("accept", "POST", fmt.Sprintf("/api/v1/orders/%s/accept", orderRef), nil, &order)
	return &order, err
}

func (sc *simulationClient) confirmPayment(orderRef string) (*types.Order, error) {
	payload := map[string]string{"payment_proof": "simulated-receipt"}
	var order types.Order
	err := sc.call("confirm", "POST", fmt.Sprintf("/api/v1/orders/%s/confirm-payment", orderRef), payload, &order)
	return &order, err
}

func (sc *simulationClient) completeOrder(orderRef string) (*types.Order, error) {
	var order types.Order
	err := sc.call("complete", "POST", fmt.Sprintf("/api/v1/orders/%s/complete", orderRef), nil, &order)
	return &order, err
}

func (sc *simulationClient) cancelOrder(orderRef string) (*types.Order, error) {
	var order types.Order
	err := sc.call("cancel", "POST", fmt.Sprintf("/api/v1/orders/%s/cancel", orderRef), nil, &order)
	return &order, err
}

// printPerformanceStats outputs formatted performance statistics for all API endpoints
func printPerformanceStats(stats map[string]*routeStats) {
	fmt.Println("\nAPI Performance Statistics")
	fmt.Println(strings.Repeat("-", 100))
	fmt.Printf("%-20s %10s %10s %10s %10s %10s %10s %10s %10s\n",
		"Endpoint", "Calls", "Errors", "Min", "Max", "Mean", "Median", "P95", "P99")
	fmt.Println(strings.Repeat("-", 100))

	for _, rs := range stats {
		min, max, mean, median, p95, p99 := rs.calculate()
		fmt.Printf("%-20s %10d %10d %10s %10s %10s %10s %10s %10s\n",
			rs.name,
			rs.totalCalls,
			rs.failures,
			min.Round(time.Millisecond),
			max.Round(time.Millisecond),
			mean.Round(time.Millisecond),
			median.Round(time.Millisecond),
			p95.Round(time.Millisecond),
			p99.Round(time.Millisecond))
	}
	fmt.Println(strings.Repeat("-", 100))
}

// main runs the exchange simulation. It starts a local API server backed by
// the escrow simulator and mock PIX provider, then drives full order
// lifecycles: sellers open SELL orders, a provider accepts them, sellers are
// paid, and the provider completes the escrow release.
func main() {
	// Start the server in a goroutine
	go func() {
		if err := startServer(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for server to start
	time.Sleep(2 * time.Second)

	stats := map[string]*routeStats{
		"auth":        {name: "Authentication"},
		"create":      {name: "Create Order"},
		"lp_register": {name: "LP Register"},
		"accept":      {name: "Accept Order"},
		"confirm":     {name: "Confirm Payment"},
		"complete":    {name: "Complete Order"},
		"cancel":      {name: "Cancel Order"},
	}

	// One provider wallet takes every order.
	lpClient, err := newSimulationClient("5LPWalletSimulation00000000000000000000000000000", stats)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize provider client")
	}
	if err := lpClient.registerLP("lp@dotpix.example"); err != nil {
		log.Fatal().Err(err).Msg("Failed to register liquidity provider")
	}

	targetOrders := rand.Intn(maxOrders-minOrders) + minOrders
	log.Info().Int("target_orders", targetOrders).Msg("Starting simulation")

	ordersChan := make(chan string, targetOrders)
	var wg sync.WaitGroup

	// Start seller worker goroutines
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			createSellOrders(workerID, targetOrders/numWorkers, stats, ordersChan)
		}(i)
	}

	wg.Wait()
	close(ordersChan)

	var orderRefs []string
	for ref := range ordersChan {
		orderRefs = append(orderRefs, ref)
	}

	log.Info().Int("orders_created", len(orderRefs)).Msg("All orders created")

	simStats := struct {
		TotalOrders     int
		AcceptedOrders  int
		PaidOrders      int
		CompletedOrders int
		FailedOrders    int
		StartTime       time.Time
	}{
		TotalOrders: len(orderRefs),
		StartTime:   time.Now(),
	}

	// Drive each order through accept, payment confirmation and completion.
	for _, ref := range orderRefs {
		if _, err := lpClient.acceptOrder(ref); err != nil {
			log.Error().Err(err).Str("order_ref", ref).Msg("Failed to accept order")
			simStats.FailedOrders++
			continue
		}
		simStats.AcceptedOrders++

		if _, err := lpClient.confirmPayment(ref); err != nil {
			log.Error().Err(err).Str("order_ref", ref).Msg("Failed to confirm payment")
			simStats.FailedOrders++
			continue
		}
		simStats.PaidOrders++

		order, err := lpClient.completeOrder(ref)
		if err != nil {
			log.Error().Err(err).Str("order_ref", ref).Msg("Failed to complete order")
			simStats.FailedOrders++
			continue
		}
		simStats.CompletedOrders++

		log.Info().
			Str("order_ref", ref).
			Str("status", string(order.Status)).
			Str("dot_amount", order.DotAmount.String()).
			Str("brl_amount", order.BrlAmount.String()).
			Str("tx_hash", order.LastTxHash).
			Msg("Order completed")
	}

	duration := time.Since(simStats.StartTime)
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("EXCHANGE SIMULATION SUMMARY")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf(`
Order Statistics
----------------
Total Orders:   %d
Accepted:       %d
Payment Sent:   %d
Completed:      %d
Failed:         %d
Duration:       %v
`, simStats.TotalOrders, simStats.AcceptedOrders, simStats.PaidOrders,
		simStats.CompletedOrders, simStats.FailedOrders, duration.Round(time.Millisecond))

	successRate := 0.0
	if simStats.TotalOrders > 0 {
		successRate = float64(simStats.CompletedOrders) / float64(simStats.TotalOrders) * 100
	}
	log.Info().
		Float64("success_rate", successRate).
		Int("total_orders", simStats.TotalOrders).
		Int("completed_orders", simStats.CompletedOrders).
		Dur("duration", duration).
		Msg("Simulation completed")

	printPerformanceStats(stats)
}

// createSellOrders authenticates a seller wallet and submits random SELL
// orders, sending created order refs to ordersChan.
func createSellOrders(workerID, numOrders int, stats map[string]*routeStats, ordersChan chan<- string) {
	wallet := fmt.Sprintf("5SellerWallet%03d0000000000000000000000000000000", workerID)
	client, err := newSimulationClient(wallet, stats)
	if err != nil {
		log.Error().Err(err).Int("worker_id", workerID).Msg("Failed to initialize seller client")
		return
	}

	pixKey := fmt.Sprintf("seller%d@dotpix.example", workerID)

	for i := 0; i < numOrders; i++ {
		dotAmount := decimal.NewFromInt(int64(rand.Intn(20) + 1))

		order, err := client.createOrder(dotAmount, pixKey)
		if err != nil {
			log.Error().Err(err).
				Int("worker_id", workerID).
				Str("dot_amount", dotAmount.String()).
				Msg("Failed to create order")
			continue
		}

		ordersChan <- order.OrderRef
		log.Info().
			Int("worker_id", workerID).
			Str("order_ref", order.OrderRef).
			Str("dot_amount", order.DotAmount.String()).
			Str("brl_amount", order.BrlAmount.String()).
			Msg("Order created")

		// Random sleep between orders
		time.Sleep(time.Duration(rand.Intn(300)) * time.Millisecond)
	}
}

// startServer initializes and starts the exchange API server with the
// in-process escrow simulator and mock PIX provider.
func startServer() error {
	db, err := database.NewDatabase("dotpix-simulation.db")
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	chain := escrow.NewSimulator(200)
	pixProvider := pix.NewMockProvider("DotPix Simulation", "Sao Paulo")
	rateService := rates.NewService("", time.Minute, decimal.NewFromFloat(7.0), decimal.NewFromFloat(35.0))

	// Generous limits so randomly sized orders always pass policy.
	authService := auth.NewService(db, jwtSecret, auth.DevVerifier{}, auth.UserDefaults{
		BuyLimitUSD:      decimal.NewFromInt(100000),
		BuyOrdersPerDay:  1000,
		SellLimitUSD:     decimal.NewFromInt(100000),
		SellOrdersPerDay: 1000,
	})
	orderService := orders.NewService(db, chain, pixProvider, rateService,
		decimal.NewFromFloat(2.0), 15*time.Minute)
	lpService := lp.NewService(db)

	gin.SetMode(gin.ReleaseMode)
	router := gin.Default()
	authHandlers := auth.NewGinHandlers(authService)
	orderHandlers := orders.NewGinHandlers(orderService)
	lpHandlers := lp.NewGinHandlers(lpService)

	setupRoutes(router, authHandlers, orderHandlers, lpHandlers)

	// Start the server
	return router.Run(":8080")
}

// setupRoutes configures all API endpoints and their handlers
// Groups routes by functionality and applies appropriate middleware
func setupRoutes(
	router *gin.Engine,
	authHandlers *auth.GinHandlers,
	orderHandlers *orders.GinHandlers,
	lpHandlers *lp.GinHandlers,
) {
	secret := []byte(jwtSecret)

	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login", authHandlers.LoginHandler())
		}

		v1.GET("/rates", orderHandlers.RatesHandler())

		// Order routes
		ordersGroup := v1.Group("/orders")
		ordersGroup.Use(middleware.JWTAuth(secret))
		{
			ordersGroup.POST("", orderHandlers.CreateOrderHandler())
			ordersGroup.GET("", orderHandlers.ListOrdersHandler())
			ordersGroup.GET("/my-orders", orderHandlers.MyOrdersHandler())
			ordersGroup.GET("/:order_ref", orderHandlers.GetOrderHandler())
			ordersGroup.POST("/:order_ref/accept", orderHandlers.AcceptOrderHandler())
			ordersGroup.POST("/:order_ref/confirm-payment", orderHandlers.ConfirmPaymentHandler())
			ordersGroup.POST("/:order_ref/complete", orderHandlers.CompleteOrderHandler())
			ordersGroup.POST("/:order_ref/cancel", orderHandlers.CancelOrderHandler())
		}

		// LP routes
		lpGroup := v1.Group("/lp")
		lpGroup.Use(middleware.JWTAuth(secret))
		{
			lpGroup.POST("/register", lpHandlers.RegisterHandler())
			lpGroup.GET("/earnings", lpHandlers.EarningsHandler())
			lpGroup.GET("/available-orders", lpHandlers.AvailableOrdersHandler())
		}
	}
}
