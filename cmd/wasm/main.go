//go:build js && wasm

// Command wasm exposes the step estimator to a browser page so device
// motion events can be counted without a server round trip. The session
// package is used directly; the service and its SQLite history are not
// compiled in.
package main

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"syscall/js"

	"github.com/himanishpuri/Podometre/pkg/podometre/cadence"
	"github.com/himanishpuri/Podometre/pkg/podometre/session"
	"github.com/himanishpuri/Podometre/pkg/podometre/signal"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorConfig
	ErrorProcessing
)

var (
	mu       sync.Mutex
	sessions = map[string]*session.State{}
)

// podometreIngest(name, samples, elapsed, sampleRate, windowSize)
// Returns: {error: number, data: object | string}
func podometreIngest(this js.Value, args []js.Value) any {
	if len(args) < 5 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 5 arguments: name, samples, elapsed, sampleRate, windowSize")
	}
	if args[0].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "name must be a string")
	}
	if args[1].Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "samples must be an Array or Float64Array")
	}
	for i, name := range []string{"elapsed", "sampleRate", "windowSize"} {
		if args[2+i].Type() != js.TypeNumber {
			return makeErrorResponse(ErrorInvalidArgs, name+" must be a number")
		}
	}

	name := args[0].String()
	elapsed := args[2].Float()
	sampleRate := args[3].Int()
	windowSize := args[4].Int()

	if name == "" {
		name = "default"
	}
	if math.IsNaN(elapsed) || math.IsInf(elapsed, 0) || elapsed < 0 {
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Invalid elapsed time: %v", elapsed))
	}

	samples, err := readSamples(args[1])
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}

	st, err := lookup(name, sampleRate, windowSize)
	if err != nil {
		return makeErrorResponse(ErrorConfig, err.Error())
	}

	snap, _, err := st.Ingest(session.Batch{
		Elapsed:    elapsed,
		SampleRate: sampleRate,
		WindowSize: windowSize,
		Samples:    samples,
	})
	if err != nil {
		code := ErrorProcessing
		if errors.Is(err, session.ErrConfig) {
			code = ErrorConfig
		}
		return makeErrorResponse(code, err.Error())
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", snapshotToJS(snap))
	return result
}

// podometreReset(name) drops a session and its window.
func podometreReset(this js.Value, args []js.Value) any {
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 1 argument: name")
	}
	mu.Lock()
	_, ok := sessions[args[0].String()]
	delete(sessions, args[0].String())
	mu.Unlock()

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", ok)
	return result
}

func lookup(name string, sampleRate, windowSize int) (*session.State, error) {
	mu.Lock()
	defer mu.Unlock()
	if st, ok := sessions[name]; ok {
		return st, nil
	}
	st, err := session.New(name, session.Params{
		SampleRate:  sampleRate,
		WindowSize:  windowSize,
		Band:        cadence.DefaultBand,
		Policy:      signal.PolicyReset,
		ElapsedMode: session.ElapsedSupplied,
	})
	if err != nil {
		return nil, err
	}
	sessions[name] = st
	return st, nil
}

// readSamples maps null and undefined entries to NaN, which the window
// stores as zero.
func readSamples(v js.Value) ([]float64, error) {
	n := v.Length()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		el := v.Index(i)
		switch el.Type() {
		case js.TypeNumber:
			out[i] = el.Float()
		case js.TypeNull, js.TypeUndefined:
			out[i] = math.NaN()
		default:
			return nil, fmt.Errorf("samples element %d is not a number", i)
		}
	}
	return out, nil
}

func snapshotToJS(s session.Snapshot) js.Value {
	obj := js.Global().Get("Object").New()
	obj.Set("name", s.ID)
	obj.Set("samplingFrequency", s.SampleRate)
	obj.Set("fftSize", s.WindowSize)
	obj.Set("time", s.Elapsed)
	obj.Set("steps", s.Steps)
	obj.Set("dominantFrequency", s.Estimate.Frequency)
	obj.Set("dominantBin", s.Estimate.DominantBin)
	obj.Set("status", string(s.Estimate.Status))
	obj.Set("bufferLength", len(s.Buffer))
	return obj
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")

	js.Global().Set("podometreIngest", js.FuncOf(podometreIngest))
	js.Global().Set("podometreReset", js.FuncOf(podometreReset))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		event := js.Global().Get("CustomEvent").New("podometreReady", js.Global().Get("Object").New())
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "podometre: window object is undefined")
	}

	if !console.IsUndefined() {
		console.Call("log", "podometre wasm module ready")
	}

	select {}
}
