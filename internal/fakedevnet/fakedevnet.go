// Package fakedevnet turns a re-executed test binary into a minimal Devnet.
//
// Tests call RunIfRequested at the top of TestMain and spawn os.Args[0] with the
// environment returned by Env. The fake serves /is_alive and a subset of the
// devnet_* JSON-RPC methods with in-memory state.
package fakedevnet

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EnvVar selects the fake's behavior. The binary runs normally when it is unset.
const EnvVar = "FAKE_DEVNET_MODE"

const (
	// ModeServe serves until killed.
	ModeServe = "serve"
	// ModeExit writes to stderr and exits with status 3 without serving.
	ModeExit = "exit"
	// ModeHang never binds its port.
	ModeHang = "hang"
)

const defaultInitialBalance = "1000000000000000000000"

// Env returns the environment entry that turns a re-executed test binary into a fake Devnet.
func Env(mode string) []string {
	return []string{EnvVar + "=" + mode}
}

// RunIfRequested runs the fake and exits if EnvVar is set. Otherwise it returns immediately.
func RunIfRequested() {
	mode := os.Getenv(EnvVar)
	if mode == "" {
		return
	}
	os.Exit(run(mode, os.Args[1:]))
}

type options struct {
	host           string
	port           string
	accounts       int
	initialBalance string
}

func parseArgs(args []string) (*options, error) {
	opts := &options{
		host:           "127.0.0.1",
		port:           "5050",
		accounts:       10,
		initialBalance: defaultInitialBalance,
	}
	for i := 0; i < len(args); i++ {
		if i+1 >= len(args) {
			return nil, fmt.Errorf("a value is required for '%s'", args[i])
		}
		value := args[i+1]
		switch args[i] {
		case "--host":
			opts.host = value
		case "--port":
			opts.port = value
		case "--accounts":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid value '%s' for '--accounts'", value)
			}
			opts.accounts = n
		case "--initial-balance":
			opts.initialBalance = value
		default:
			return nil, fmt.Errorf("unexpected argument '%s' found", args[i])
		}
		i++
	}
	return opts, nil
}

func run(mode string, args []string) int {
	switch mode {
	case ModeExit:
		fmt.Fprintln(os.Stderr, "error: fake devnet asked to exit")
		return 3
	case ModeHang:
		time.Sleep(time.Hour)
		return 0
	}

	opts, err := parseArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	addr := net.JoinHostPort(opts.host, opts.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to bind %s: %v\n", addr, err)
		return 1
	}

	state := newState(opts)
	mux := http.NewServeMux()
	mux.HandleFunc("/is_alive", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Alive!!!"))
	})
	mux.HandleFunc("/", state.handleRPC)

	fmt.Fprintf(os.Stdout, "Starknet Devnet listening on %s\n", addr)
	if err := http.Serve(listener, mux); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type state struct {
	mu       sync.Mutex
	opts     *options
	balances map[string]*big.Int
	blocks   int
	time     int64
}

func newState(opts *options) *state {
	s := &state{opts: opts}
	s.reset()
	return s
}

func (s *state) reset() {
	s.balances = make(map[string]*big.Int)
	s.blocks = 1
	s.time = time.Now().Unix()
}

func (s *state) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, map[string]any{"jsonrpc": "2.0", "id": "1", "error": rpcError{Code: -32700, Message: "Parse error"}})
		return
	}

	s.mu.Lock()
	result, rpcErr := s.dispatch(req.Method, req.Params)
	s.mu.Unlock()

	if rpcErr != nil {
		writeJSON(w, map[string]any{"jsonrpc": "2.0", "id": "1", "error": rpcErr})
		return
	}
	writeJSON(w, map[string]any{"jsonrpc": "2.0", "id": "1", "result": result})
}

func (s *state) dispatch(method string, raw json.RawMessage) (any, *rpcError) {
	var params map[string]json.RawMessage
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, &rpcError{Code: -32602, Message: "Invalid params"}
		}
	}
	str := func(key string) string {
		var v string
		json.Unmarshal(params[key], &v)
		return v
	}

	switch method {
	case "devnet_getPredeployedAccounts":
		accounts := make([]map[string]string, s.opts.accounts)
		for i := range accounts {
			accounts[i] = map[string]string{
				"address":         fmt.Sprintf("0x%x", 0x1000+i),
				"private_key":     fmt.Sprintf("0x%x", 0x2000+i),
				"public_key":      fmt.Sprintf("0x%x", 0x3000+i),
				"initial_balance": s.opts.initialBalance,
			}
		}
		return accounts, nil
	case "devnet_mint":
		amount, ok := new(big.Int).SetString(strings.TrimSpace(string(params["amount"])), 10)
		if !ok {
			return nil, &rpcError{Code: -32602, Message: "Invalid amount"}
		}
		unit := str("unit")
		key := strings.ToLower(str("address")) + "/" + unit
		balance, ok := s.balances[key]
		if !ok {
			balance = new(big.Int)
			s.balances[key] = balance
		}
		balance.Add(balance, amount)
		s.blocks++
		return map[string]any{
			"new_balance": balance.String(),
			"unit":        unit,
			"tx_hash":     fmt.Sprintf("0x%x", s.blocks),
		}, nil
	case "devnet_dump":
		path := str("path")
		dumped := make(map[string]string, len(s.balances))
		for k, v := range s.balances {
			dumped[k] = v.String()
		}
		data, _ := json.Marshal(dumped)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return nil, &rpcError{Code: -1, Message: err.Error()}
		}
		return nil, nil
	case "devnet_load":
		data, err := os.ReadFile(str("path"))
		if err != nil {
			return nil, &rpcError{Code: -1, Message: "The file does not exist"}
		}
		var loaded map[string]string
		if err := json.Unmarshal(data, &loaded); err != nil {
			return nil, &rpcError{Code: -1, Message: err.Error()}
		}
		s.balances = make(map[string]*big.Int, len(loaded))
		for k, v := range loaded {
			s.balances[k], _ = new(big.Int).SetString(v, 10)
		}
		return nil, nil
	case "devnet_restart":
		s.reset()
		return nil, nil
	case "devnet_createBlock":
		s.blocks++
		return map[string]string{"block_hash": fmt.Sprintf("0x%x", s.blocks)}, nil
	case "devnet_increaseTime":
		var inc int64
		json.Unmarshal(params["time"], &inc)
		s.time += inc
		s.blocks++
		return map[string]any{"timestamp_increased_by": inc, "block_hash": fmt.Sprintf("0x%x", s.blocks)}, nil
	case "devnet_setTime":
		json.Unmarshal(params["time"], &s.time)
		return map[string]any{"block_timestamp": s.time}, nil
	case "starknet_getBlockWithTxHashes":
		return map[string]any{"timestamp": s.time, "block_number": s.blocks}, nil
	default:
		return nil, &rpcError{Code: -32601, Message: "Method not found"}
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}
