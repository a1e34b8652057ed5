package capture

import (
	"strings"

	"jewelfinder-go/internal/domain/media"
	"jewelfinder-go/internal/platform/errors"
	"jewelfinder-go/internal/platform/logging"
)

// FileSource distinguishes how an image reached the pipeline. Picked files
// arrive pre-filtered by the chooser; dropped payloads can be anything.
type FileSource string

const (
	SourcePick FileSource = "pick"
	SourceDrop FileSource = "drop"
)

// FilePipeline admits image payloads from the picker and drop targets.
type FilePipeline struct {
	logger *logging.Logger
}

func NewFilePipeline(logger *logging.Logger) *FilePipeline {
	if logger == nil {
		logger = logging.DefaultLogger
	}
	return &FilePipeline{logger: logger}
}

// Accept validates an incoming payload. Dropped items must declare an
// image/* MIME type; picked files pass through without a type check because
// the chooser already constrained them.
func (p *FilePipeline) Accept(source FileSource, asset media.Asset) (media.Asset, error) {
	const op = "capture:file.accept"

	if asset.Size() == 0 {
		return media.Asset{}, errors.New(errors.KindCapture, op, "empty payload")
	}

	if source == SourceDrop && !strings.HasPrefix(asset.MIME, "image/") {
		p.logger.WarnTag("MEDIA", "rejected dropped item with type %q", asset.MIME)
		return media.Asset{}, errors.New(errors.KindCapture, op, "dropped item is not an image")
	}

	p.logger.DebugTag("MEDIA", "accepted %s payload %q (%d bytes)", source, asset.Name, asset.Size())
	return asset, nil
}
