package predict

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/golang/snappy"
	"github.com/okian/mimic/internal/domain/model"
	"github.com/spaolacci/murmur3"
)

// Artifact framing.
// Format: 4 bytes magic + 2 bytes version + 16 bytes murmur3-128(payload) + snappy(JSON body)
const (
	artifactMagic   = "MMDL"
	artifactVersion = 1
	headerSize      = 4 + 2 + 16
)

type artifactBody struct {
	SchemaVersion int              `json:"schema_version"`
	Classes       []model.Category `json:"classes"`
	Forest        *forest          `json:"forest"`
	Metrics       Metrics          `json:"metrics"`
}

func checksum(b []byte) (uint64, uint64) {
	h := murmur3.New128()
	_, _ = h.Write(b)
	return h.Sum128()
}

func encodeArtifact(s *snapshot) ([]byte, error) {
	raw, err := json.Marshal(artifactBody{
		SchemaVersion: artifactVersion,
		Classes:       s.classes,
		Forest:        s.forest,
		Metrics:       s.metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	payload := snappy.Encode(nil, raw)

	buf := make([]byte, headerSize+len(payload))
	copy(buf[0:4], artifactMagic)
	binary.LittleEndian.PutUint16(buf[4:6], artifactVersion)
	h1, h2 := checksum(payload)
	binary.LittleEndian.PutUint64(buf[6:14], h1)
	binary.LittleEndian.PutUint64(buf[14:22], h2)
	copy(buf[headerSize:], payload)
	return buf, nil
}

func decodeArtifact(data []byte) (*snapshot, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: truncated header", ErrInvalidArtifact)
	}
	if !bytes.Equal(data[0:4], []byte(artifactMagic)) {
		return nil, fmt.Errorf("%w: bad magic", ErrInvalidArtifact)
	}
	if v := binary.LittleEndian.Uint16(data[4:6]); v > artifactVersion {
		return nil, fmt.Errorf("%w: version %d is newer than %d", ErrInvalidArtifact, v, artifactVersion)
	}
	payload := data[headerSize:]
	h1, h2 := checksum(payload)
	if h1 != binary.LittleEndian.Uint64(data[6:14]) || h2 != binary.LittleEndian.Uint64(data[14:22]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidArtifact)
	}

	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: snappy decompress failed: %w", ErrInvalidArtifact, err)
	}
	var body artifactBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	if body.SchemaVersion > artifactVersion {
		return nil, fmt.Errorf("%w: schema version %d", ErrInvalidArtifact, body.SchemaVersion)
	}
	if err := validate(&body); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArtifact, err)
	}
	return &snapshot{classes: body.Classes, forest: body.Forest, metrics: body.Metrics}, nil
}

// validate makes sure prediction cannot index out of range.
func validate(b *artifactBody) error {
	if len(b.Classes) == 0 || b.Forest == nil || len(b.Forest.Trees) == 0 {
		return errors.New("empty model")
	}
	if b.Forest.Classes != len(b.Classes) {
		return fmt.Errorf("forest has %d classes, mapping has %d", b.Forest.Classes, len(b.Classes))
	}
	for _, c := range b.Classes {
		if !c.Valid() {
			return fmt.Errorf("unknown class %q", c)
		}
	}
	for ti, t := range b.Forest.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("tree %d is empty", ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature == leaf {
				if len(n.Proba) != b.Forest.Classes {
					return fmt.Errorf("tree %d node %d: bad leaf", ti, ni)
				}
				continue
			}
			// Children always follow their parent, which also rules out cycles.
			if n.Feature < 0 || n.Feature >= len(b.Forest.Importance) ||
				n.Left <= ni || n.Right <= ni || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return fmt.Errorf("tree %d node %d: bad split", ti, ni)
			}
		}
	}
	return nil
}
