package socketio

import (
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"

	"github.com/edumarques81/stellar-queue/internal/domain/player"
	"github.com/edumarques81/stellar-queue/internal/domain/queue"
)

// registerPlayerHandlers wires transport controls.
func (s *Server) registerPlayerHandlers(client *socket.Socket) {
	clientID := string(client.Id())

	client.On("play", func(args ...any) {
		s.submit(clientID, "play", player.SetPaused{Paused: false})
	})

	client.On("pause", func(args ...any) {
		s.submit(clientID, "pause", player.SetPaused{Paused: true})
	})

	client.On("toggle", func(args ...any) {
		s.submit(clientID, "toggle", player.TogglePlay{})
	})

	client.On("next", func(args ...any) {
		s.submit(clientID, "next", player.Next{})
	})

	client.On("prev", func(args ...any) {
		s.submit(clientID, "prev", player.Previous{})
	})

	client.On("seekStart", func(args ...any) {
		s.submit(clientID, "seekStart", player.SeekStart{})
	})

	client.On("seekEnd", func(args ...any) {
		if ms, ok := numberArg(args, "ms"); ok {
			s.submit(clientID, "seekEnd", player.SeekEnd{Ms: int64(ms)})
		}
	})

	// seek takes seconds, the way Volumio clients send it.
	client.On("seek", func(args ...any) {
		if sec, ok := numberArg(args, "value"); ok {
			s.submit(clientID, "seek", player.SeekEnd{Ms: int64(sec * 1000)})
		}
	})

	client.On("volume", func(args ...any) {
		if vol, ok := numberArg(args, "value"); ok {
			s.submit(clientID, "volume", player.SetVolume{Volume: vol / 100})
		}
	})

	client.On("setRandom", func(args ...any) {
		if v, ok := boolArg(args, "value"); ok {
			s.submit(clientID, "setRandom", player.SetShuffle{On: v})
		}
	})

	client.On("toggleRandom", func(args ...any) {
		s.submit(clientID, "toggleRandom", player.ToggleShuffle{})
	})

	client.On("setRepeat", func(args ...any) {
		if mode, ok := repeatArg(args); ok {
			s.submit(clientID, "setRepeat", player.SetRepeat{Mode: mode})
		}
	})

	client.On("cycleRepeat", func(args ...any) {
		s.submit(clientID, "cycleRepeat", player.CycleRepeat{})
	})
}

// registerQueueHandlers wires queue edits and library lookups.
func (s *Server) registerQueueHandlers(client *socket.Socket) {
	clientID := string(client.Id())

	client.On("playTrack", func(args ...any) {
		if id, ok := numberArg(args, "id"); ok {
			s.submit(clientID, "playTrack", player.PlayTrack{ID: queue.TrackID(id)})
		}
	})

	client.On("playTracks", func(args ...any) {
		m := mapArg(args)
		ids := trackIDs(m["ids"])
		if len(ids) == 0 {
			return
		}
		index, _ := toNumber(m["index"])
		s.submit(clientID, "playTracks", player.PlayTracks{IDs: ids, Index: int(index)})
	})

	client.On("playAlbum", func(args ...any) {
		if s.library != nil {
			s.playCollection(clientID, "playAlbum", "albumId", args, s.library.AlbumTracks)
		}
	})

	client.On("playPlaylist", func(args ...any) {
		if s.library != nil {
			s.playCollection(clientID, "playPlaylist", "playlistId", args, s.library.PlaylistTracks)
		}
	})

	client.On("addPlayNext", func(args ...any) {
		if ids := trackIDs(mapArg(args)["ids"]); len(ids) > 0 {
			s.submit(clientID, "addPlayNext", player.AddPlayNext{IDs: ids})
		}
	})

	client.On("addToQueue", func(args ...any) {
		if ids := trackIDs(mapArg(args)["ids"]); len(ids) > 0 {
			s.submit(clientID, "addToQueue", player.AddTracks{IDs: ids})
		}
	})

	client.On("removeQueueItem", func(args ...any) {
		if index, ok := numberArg(args, "index"); ok {
			s.submit(clientID, "removeQueueItem", player.RemoveAt{Index: int(index)})
		}
	})

	client.On("moveQueueItem", func(args ...any) {
		m := mapArg(args)
		from, okFrom := toNumber(m["from"])
		to, okTo := toNumber(m["to"])
		if okFrom && okTo {
			s.submit(clientID, "moveQueueItem", player.Move{From: int(from), To: int(to)})
		}
	})

	client.On("clearQueue", func(args ...any) {
		s.submit(clientID, "clearQueue", player.ClearQueue{})
	})

	client.On("getLibraryStats", func(args ...any) {
		if s.library == nil {
			return
		}
		stats, err := s.library.Stats()
		if err != nil {
			log.Error().Err(err).Msg("Failed to get library stats")
			return
		}
		client.Emit("pushLibraryStats", stats)
	})
}

// playCollection replaces the queue with an album or playlist, starting at
// the optional "index" argument.
func (s *Server) playCollection(clientID, event, key string, args []any, lookup func(int64) ([]queue.TrackID, error)) {
	id, ok := numberArg(args, key)
	if !ok {
		return
	}
	ids, err := lookup(int64(id))
	if err != nil {
		log.Error().Err(err).Str("event", event).Int64(key, int64(id)).Msg("Play request failed")
		return
	}
	index, _ := toNumber(mapArg(args)["index"])
	s.submit(clientID, event, player.PlayTracks{IDs: ids, Index: int(index)})
}

// mapArg returns the first argument as an object, or an empty map.
func mapArg(args []any) map[string]any {
	if len(args) > 0 {
		if m, ok := args[0].(map[string]any); ok {
			return m
		}
	}
	return map[string]any{}
}

// numberArg accepts either a bare number or {key: number}.
func numberArg(args []any, key string) (float64, bool) {
	if len(args) == 0 {
		return 0, false
	}
	if v, ok := toNumber(args[0]); ok {
		return v, true
	}
	return toNumber(mapArg(args)[key])
}

// boolArg accepts either a bare bool or {key: bool}.
func boolArg(args []any, key string) (bool, bool) {
	if len(args) == 0 {
		return false, false
	}
	if v, ok := args[0].(bool); ok {
		return v, true
	}
	v, ok := mapArg(args)[key].(bool)
	return v, ok
}

// repeatArg accepts {mode: "none"|"queue"|"track"} or the Volumio shape
// {value: bool, repeatSingle: bool}.
func repeatArg(args []any) (queue.RepeatMode, bool) {
	m := mapArg(args)
	if name, ok := m["mode"].(string); ok {
		var mode queue.RepeatMode
		if err := mode.UnmarshalText([]byte(name)); err != nil {
			log.Debug().Err(err).Msg("setRepeat ignored")
			return queue.RepeatNone, false
		}
		return mode, true
	}

	repeat, ok := m["value"].(bool)
	if !ok {
		return queue.RepeatNone, false
	}
	single, _ := m["repeatSingle"].(bool)
	switch {
	case repeat && single:
		return queue.RepeatTrack, true
	case repeat:
		return queue.RepeatQueue, true
	default:
		return queue.RepeatNone, true
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func trackIDs(v any) []queue.TrackID {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	ids := make([]queue.TrackID, 0, len(list))
	for _, item := range list {
		if n, ok := toNumber(item); ok {
			ids = append(ids, queue.TrackID(n))
		}
	}
	return ids
}
