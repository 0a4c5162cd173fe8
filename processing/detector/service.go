package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"net/url"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"spacedetect/internal/models"
)

const remoteTimeout = 5 * time.Second

// RemoteModel sends each frame as a JPEG binary message to a detection
// server and reads back one JSON array of detections. The connection is
// dialed lazily and re-dialed on the next call after any failure.
type RemoteModel struct {
	serverURL string
	dialer    *websocket.Dialer
	log       *zap.SugaredLogger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewRemoteModel(serverURL string, log *zap.SugaredLogger) (*RemoteModel, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, errors.Wrapf(err, "parse detector url %q", serverURL)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, errors.Errorf("detector url %q must use ws or wss", serverURL)
	}

	return &RemoteModel{
		serverURL: u.String(),
		dialer:    &websocket.Dialer{HandshakeTimeout: remoteTimeout},
		log:       log,
	}, nil
}

func (d *RemoteModel) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	d.log.Infow("connecting to detector server", "url", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", d.serverURL)
	}
	d.log.Info("connected to detection server")
	d.conn = conn
	return conn, nil
}

func (d *RemoteModel) drop(err error) {
	d.log.Warnw("connection lost", "error", err)
	d.conn.Close()
	d.conn = nil
}

func (d *RemoteModel) Predict(ctx context.Context, img image.Image) ([]models.Detection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, errors.Wrap(err, "jpeg encode")
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(remoteTimeout)
	}
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	if err := conn.WriteMessage(websocket.BinaryMessage, buf.Bytes()); err != nil {
		d.drop(err)
		return nil, errors.Wrap(err, "send frame")
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.drop(err)
		return nil, errors.Wrap(err, "read detections")
	}

	var results []models.Detection
	if err := json.Unmarshal(message, &results); err != nil {
		return nil, errors.Wrap(err, "decode detections")
	}
	return results, nil
}

func (d *RemoteModel) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}
	err := d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	d.conn.Close()
	d.conn = nil
	return err
}
