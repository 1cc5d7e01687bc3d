package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/tasklens/backend/internal/models"
	"github.com/tasklens/backend/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Handler serves the overlay sync API: the remote end of the storage
// adapter contract. One record per (instanceKey, slice); GET returns the
// full state as a {slice: value} object, POST writes one slice from a
// {type, data} body.
type Handler struct {
	store       OverlayStore
	broadcaster Broadcaster

	// presets are server-side default slices per instance key, merged
	// under stored records on reads.
	presets map[string]map[storage.Slice]json.RawMessage
}

// NewHandler creates the API handler. broadcaster may be nil when no live
// feed is wired.
func NewHandler(store OverlayStore, broadcaster Broadcaster) *Handler {
	return &Handler{
		store:       store,
		broadcaster: broadcaster,
		presets:     make(map[string]map[storage.Slice]json.RawMessage),
	}
}

// LoadDefaultPresets reads a YAML file mapping instance keys to default
// slice values. A missing file is not an error; a preset slice that fails
// validation is skipped and logged.
func (h *Handler) LoadDefaultPresets(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil // No presets file
	}
	if err != nil {
		return fmt.Errorf("reading presets: %w", err)
	}

	var parsed map[string]map[string]any
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parsing presets: %w", err)
	}

	loaded := make(map[string]map[storage.Slice]json.RawMessage, len(parsed))
	for instanceKey, slices := range parsed {
		records := make(map[storage.Slice]json.RawMessage, len(slices))
		for name, value := range slices {
			slice := storage.Slice(name)
			if !slice.Known() {
				fmt.Printf("[API] Preset %s: unknown slice %q skipped\n", instanceKey, name)
				continue
			}
			encoded, err := json.Marshal(value)
			if err != nil {
				fmt.Printf("[API] Preset %s/%s: %v\n", instanceKey, name, err)
				continue
			}
			var scratch models.PartialState
			if err := storage.DecodeSliceInto(&scratch, slice, encoded); err != nil {
				fmt.Printf("[API] Preset %s/%s: invalid value skipped: %v\n", instanceKey, name, err)
				continue
			}
			records[slice] = encoded
		}
		if len(records) > 0 {
			loaded[instanceKey] = records
		}
	}
	h.presets = loaded
	fmt.Printf("[API] Loaded presets for %d instance(s)\n", len(loaded))
	return nil
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleGetState returns the full persisted state of one instance as a
// {slice: value} object. Preset slices fill in where nothing is stored.
// An instance with no stored slices and no presets is a 404.
func (h *Handler) HandleGetState(c echo.Context) error {
	instanceKey := c.Param("instanceKey")
	if instanceKey == "" {
		return NewBadRequestError("instanceKey is required", nil)
	}

	state, err := h.store.GetState(c.Request().Context(), instanceKey)
	if err != nil {
		return NewInternalError("failed to load state", err)
	}

	for slice, value := range h.presets[instanceKey] {
		if _, stored := state[slice]; !stored {
			state[slice] = value
		}
	}

	if len(state) == 0 {
		return NewNotFoundError("instance", instanceKey)
	}
	return c.JSON(http.StatusOK, state)
}

// sliceWrite is the POST body: one slice value keyed by its type name.
type sliceWrite struct {
	Type storage.Slice   `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandlePutSlice validates and upserts one slice for an instance.
func (h *Handler) HandlePutSlice(c echo.Context) error {
	instanceKey := c.Param("instanceKey")
	if instanceKey == "" {
		return NewBadRequestError("instanceKey is required", nil)
	}

	var req sliceWrite
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid JSON body", err)
	}
	if !req.Type.Known() {
		return NewBadRequestError(fmt.Sprintf("unknown slice type %q", req.Type), nil)
	}
	if len(req.Data) == 0 {
		return NewBadRequestError("data is required", nil)
	}

	// Validate the payload the same way a loading client will.
	var scratch models.PartialState
	if err := storage.DecodeSliceInto(&scratch, req.Type, req.Data); err != nil {
		return NewBadRequestError(fmt.Sprintf("invalid %s value", req.Type), err)
	}

	if err := h.store.PutSlice(c.Request().Context(), instanceKey, req.Type, req.Data); err != nil {
		return NewInternalError("failed to save slice", err)
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastSliceUpdate(instanceKey, req.Type)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleDeleteInstance removes every stored slice for an instance.
func (h *Handler) HandleDeleteInstance(c echo.Context) error {
	instanceKey := c.Param("instanceKey")
	if instanceKey == "" {
		return NewBadRequestError("instanceKey is required", nil)
	}

	if err := h.store.DeleteInstance(c.Request().Context(), instanceKey); err != nil {
		return NewInternalError("failed to delete instance", err)
	}

	if h.broadcaster != nil {
		h.broadcaster.BroadcastInstanceRemoved(instanceKey)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleListInstances returns stored instances, most recently written first.
func (h *Handler) HandleListInstances(c echo.Context) error {
	infos, err := h.store.ListInstances(c.Request().Context())
	if err != nil {
		return NewInternalError("failed to list instances", err)
	}
	if infos == nil {
		infos = []storage.InstanceInfo{}
	}
	return c.JSON(http.StatusOK, infos)
}

// HandleGetStateMsgpack returns the hydrating-ready partial state of one
// instance encoded as msgpack, for clients that prefer the compact form.
func (h *Handler) HandleGetStateMsgpack(c echo.Context) error {
	instanceKey := c.Param("instanceKey")
	if instanceKey == "" {
		return NewBadRequestError("instanceKey is required", nil)
	}

	state, err := h.store.GetState(c.Request().Context(), instanceKey)
	if err != nil {
		return NewInternalError("failed to load state", err)
	}
	for slice, value := range h.presets[instanceKey] {
		if _, stored := state[slice]; !stored {
			state[slice] = value
		}
	}
	if len(state) == 0 {
		return NewNotFoundError("instance", instanceKey)
	}

	partial := storage.DecodeRecords(state, func(slice storage.Slice, err error) {
		fmt.Printf("[API] %s: invalid stored %s record skipped: %v\n", instanceKey, slice, err)
	})

	encoded, err := msgpack.Marshal(partial)
	if err != nil {
		return NewInternalError("failed to encode state", err)
	}
	return c.Blob(http.StatusOK, "application/x-msgpack", encoded)
}
