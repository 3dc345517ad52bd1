// Package pixihttp exposes MAX11300 devices over HTTP with JSON bodies.
//
// Every route accepts an optional "cs" query parameter selecting the chip
// select; it defaults to 0. Requests are executed through a command.Dispatcher.
package pixihttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/yunginnanet/pixi-max11300/pkg/command"
	"github.com/yunginnanet/pixi-max11300/pkg/max11300"
)

// MethodPath is a route key.
type MethodPath struct {
	Method, Path string
}

// RouteTable maps routes to handlers.
type RouteTable map[MethodPath]http.HandlerFunc

// Bind registers every route of rt on r.
func (rt RouteTable) Bind(r chi.Router) {
	for mp, h := range rt {
		r.MethodFunc(mp.Method, mp.Path, h)
	}
}

// Value is the body of register and channel reads and writes.
type Value struct {
	Value int `json:"value"`
}

// Temperature is the body of a temperature read.
type Temperature struct {
	Sensor  string  `json:"sensor"`
	Celsius float64 `json:"celsius"`
}

// ChannelConfig is the JSON form of max11300.ChannelConfig; the channel comes from the path.
type ChannelConfig struct {
	Mode           uint8  `json:"mode"`
	Range          uint8  `json:"range"`
	DACValue       uint16 `json:"dac_value"`
	ADCControl     uint8  `json:"adc_control"`
	ADCSamples     uint8  `json:"adc_samples"`
	AssociatedPort uint8  `json:"associated_port"`
}

// Message is the body of POST /command.
type Message struct {
	Selector string `json:"selector"`
	Args     []int  `json:"args"`
}

// HTTPPixi wraps a dispatcher in an HTTP interface.
type HTTPPixi struct {
	d *command.Dispatcher

	RouteTable RouteTable
}

// NewHTTPPixi builds the route table for d.
func NewHTTPPixi(d *command.Dispatcher) HTTPPixi {
	h := HTTPPixi{d: d, RouteTable: RouteTable{}}
	rt := h.RouteTable
	rt[MethodPath{http.MethodPost, "/init"}] = h.Init
	rt[MethodPath{http.MethodPost, "/channels/{ch}/config"}] = h.ConfigChannel
	rt[MethodPath{http.MethodGet, "/channels/{ch}/adc"}] = h.ReadChannel
	rt[MethodPath{http.MethodPost, "/channels/{ch}/dac"}] = h.WriteChannel
	rt[MethodPath{http.MethodGet, "/registers/{addr}"}] = h.ReadRegister
	rt[MethodPath{http.MethodPost, "/registers/{addr}"}] = h.WriteRegister
	rt[MethodPath{http.MethodGet, "/temperature/{sensor}"}] = h.ReadTemperature
	rt[MethodPath{http.MethodPost, "/command"}] = h.Command
	return h
}

// Router returns a chi router with every route bound.
func (h HTTPPixi) Router() chi.Router {
	r := chi.NewRouter()
	h.RouteTable.Bind(r)
	return r
}

// StatusFor maps an error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, max11300.ErrInvalidChannel),
		errors.Is(err, command.ErrArgs),
		errors.Is(err, command.ErrUnknownSelector):
		return http.StatusBadRequest
	case errors.Is(err, max11300.ErrDeviceNotFound),
		errors.Is(err, command.ErrNoDevice):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), StatusFor(err))
}

func respond(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func chipSelect(r *http.Request) (command.Target, error) {
	s := r.URL.Query().Get("cs")
	if s == "" {
		return command.Target{}, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return command.Target{}, fmt.Errorf("%w: chip select %q", command.ErrArgs, s)
	}
	return command.Target{CS: n}, nil
}

// urlUint parses the path parameter key as an unsigned integer of at most bits
// bits. Hex with a 0x prefix is accepted.
func urlUint(r *http.Request, key string, bits int) (uint64, error) {
	s := chi.URLParam(r, key)
	n, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", command.ErrArgs, key, s)
	}
	return n, nil
}

func (h HTTPPixi) run(w http.ResponseWriter, cmd command.Command) (command.Result, bool) {
	res, err := h.d.Execute(cmd)
	if err != nil {
		fail(w, err)
		return res, false
	}
	return res, true
}

// Init runs the bring-up sequence.
func (h HTTPPixi) Init(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	if _, ok := h.run(w, command.Init{Target: t}); ok {
		w.WriteHeader(http.StatusOK)
	}
}

// ConfigChannel decodes a ChannelConfig and applies it to {ch}.
func (h HTTPPixi) ConfigChannel(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	ch, err := urlUint(r, "ch", 8)
	if err != nil {
		fail(w, err)
		return
	}
	var in ChannelConfig
	err = json.NewDecoder(r.Body).Decode(&in)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd := command.ConfigChannel{Target: t, Config: max11300.ChannelConfig{
		Channel:        max11300.Channel(ch),
		Mode:           max11300.Mode(in.Mode),
		Range:          max11300.Range(in.Range),
		DACValue:       in.DACValue,
		ADCControl:     in.ADCControl,
		ADCSamples:     in.ADCSamples,
		AssociatedPort: max11300.Channel(in.AssociatedPort),
	}}
	if _, ok := h.run(w, cmd); ok {
		w.WriteHeader(http.StatusOK)
	}
}

// ReadChannel returns the ADC code of {ch} as {"value": n}.
func (h HTTPPixi) ReadChannel(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	ch, err := urlUint(r, "ch", 8)
	if err != nil {
		fail(w, err)
		return
	}
	if res, ok := h.run(w, command.ReadChannel{Target: t, Channel: max11300.Channel(ch)}); ok {
		respond(w, Value{Value: res.Value})
	}
}

// WriteChannel writes {"value": n} to the DAC of {ch}.
func (h HTTPPixi) WriteChannel(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	ch, err := urlUint(r, "ch", 8)
	if err != nil {
		fail(w, err)
		return
	}
	v, err := decodeValue(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := h.run(w, command.WriteChannel{Target: t, Channel: max11300.Channel(ch), Value: v}); ok {
		w.WriteHeader(http.StatusOK)
	}
}

// ReadRegister returns register {addr} as {"value": n}.
func (h HTTPPixi) ReadRegister(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	addr, err := urlUint(r, "addr", 8)
	if err != nil {
		fail(w, err)
		return
	}
	if res, ok := h.run(w, command.ReadRegister{Target: t, Register: max11300.Register(addr)}); ok {
		respond(w, Value{Value: res.Value})
	}
}

// WriteRegister writes {"value": n} to register {addr}.
func (h HTTPPixi) WriteRegister(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	addr, err := urlUint(r, "addr", 8)
	if err != nil {
		fail(w, err)
		return
	}
	v, err := decodeValue(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, ok := h.run(w, command.WriteRegister{Target: t, Register: max11300.Register(addr), Value: v}); ok {
		w.WriteHeader(http.StatusOK)
	}
}

// ReadTemperature reads {sensor}, 0 internal, 1 and 2 external.
func (h HTTPPixi) ReadTemperature(w http.ResponseWriter, r *http.Request) {
	t, err := chipSelect(r)
	if err != nil {
		fail(w, err)
		return
	}
	s, err := urlUint(r, "sensor", 8)
	if err != nil {
		fail(w, err)
		return
	}
	sensor := max11300.Sensor(s)
	if res, ok := h.run(w, command.ReadTemperature{Target: t, Sensor: sensor}); ok {
		respond(w, Temperature{Sensor: sensor.String(), Celsius: float64(res.Value) / 8})
	}
}

// Command decodes a Message and runs it, responding with the command.Result.
func (h HTTPPixi) Command(w http.ResponseWriter, r *http.Request) {
	var msg Message
	err := json.NewDecoder(r.Body).Decode(&msg)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	cmd, err := command.Decode(msg.Selector, msg.Args)
	if err != nil {
		fail(w, err)
		return
	}
	if res, ok := h.run(w, cmd); ok {
		respond(w, res)
	}
}

func decodeValue(r *http.Request) (uint16, error) {
	var in Value
	err := json.NewDecoder(r.Body).Decode(&in)
	defer r.Body.Close()
	if err != nil {
		return 0, err
	}
	if in.Value < 0 || in.Value > 0xFFFF {
		return 0, fmt.Errorf("value %d out of range", in.Value)
	}
	return uint16(in.Value), nil
}
