//go:build windows

package mixer

import (
	"errors"
	"log/slog"
	"unsafe"

	"github.com/go-ole/go-ole"
	"github.com/moutend/go-wca/pkg/wca"

	apperrors "github.com/GriffinCanCode/soundswitch/internal/errors"
)

// wasapiBackend owns a COM apartment on one locked OS thread; every COM call
// goes through worker.
type wasapiBackend struct {
	worker *threadWorker
	names  *nameCache

	// Owned by the COM thread.
	enumerator *wca.IMMDeviceEnumerator
	volumes    map[int]*wca.ISimpleAudioVolume
}

// Open starts the WASAPI session backend.
func Open() (Backend, error) {
	b := &wasapiBackend{
		names:   newNameCache(processNames),
		volumes: make(map[int]*wca.ISimpleAudioVolume),
	}
	w, err := startWorker(b.setup)
	if err != nil {
		return nil, err
	}
	b.worker = w
	return b, nil
}

// setup runs on the worker thread.
func (b *wasapiBackend) setup() (func(), error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		// S_FALSE: already initialised on this thread.
		if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
			return nil, apperrors.Wrap(err, apperrors.AudioInitFailed, "initialize COM")
		}
	}

	if err := wca.CoCreateInstance(wca.CLSID_MMDeviceEnumerator, 0, wca.CLSCTX_ALL, wca.IID_IMMDeviceEnumerator, &b.enumerator); err != nil {
		ole.CoUninitialize()
		return nil, apperrors.Wrap(err, apperrors.AudioInitFailed, "create device enumerator")
	}

	return func() {
		b.releaseVolumes()
		b.enumerator.Release()
		ole.CoUninitialize()
	}, nil
}

func (b *wasapiBackend) Sessions() ([]Session, error) {
	var sessions []Session
	err := b.worker.do(func() error {
		var err error
		sessions, err = b.enumerate()
		return err
	})
	return sessions, err
}

func (b *wasapiBackend) SetVolume(id int, level float32) error {
	return b.worker.do(func() error {
		vol, ok := b.volumes[id]
		if !ok {
			return apperrors.Newf(apperrors.AudioSessionFailed, "unknown session %d", id)
		}
		return vol.SetMasterVolume(level, nil)
	})
}

// Close stops the COM thread and waits for it to release its interfaces.
func (b *wasapiBackend) Close() error {
	b.worker.stop()
	return nil
}

// enumerate lists sessions on the default render endpoint. Runs on the COM thread.
func (b *wasapiBackend) enumerate() ([]Session, error) {
	b.releaseVolumes()

	var device *wca.IMMDevice
	if err := b.enumerator.GetDefaultAudioEndpoint(wca.ERender, wca.EConsole, &device); err != nil {
		return nil, err
	}
	defer device.Release()

	var manager *wca.IAudioSessionManager2
	if err := device.Activate(wca.IID_IAudioSessionManager2, wca.CLSCTX_ALL, nil, &manager); err != nil {
		return nil, err
	}
	defer manager.Release()

	var sessionEnum *wca.IAudioSessionEnumerator
	if err := manager.GetSessionEnumerator(&sessionEnum); err != nil {
		return nil, err
	}
	defer sessionEnum.Release()

	var count int
	if err := sessionEnum.GetCount(&count); err != nil {
		return nil, err
	}

	sessions := make([]Session, 0, count)
	for i := 0; i < count; i++ {
		var ctl *wca.IAudioSessionControl
		if err := sessionEnum.GetSession(i, &ctl); err != nil {
			slog.Debug("skip audio session", "index", i, "error", err)
			continue
		}
		s, ok := b.describe(i, ctl)
		ctl.Release()
		if ok {
			sessions = append(sessions, s)
		}
	}
	return sessions, nil
}

func (b *wasapiBackend) describe(id int, ctl *wca.IAudioSessionControl) (Session, bool) {
	disp, err := ctl.QueryInterface(wca.IID_IAudioSessionControl2)
	if err != nil {
		return Session{}, false
	}
	ctl2 := (*wca.IAudioSessionControl2)(unsafe.Pointer(disp))
	defer ctl2.Release()

	var pid uint32
	if err := ctl2.GetProcessId(&pid); err != nil || pid == 0 {
		// pid 0 is the system sounds session.
		return Session{}, false
	}

	name, err := b.names.Lookup(pid)
	if err != nil {
		slog.Debug("process name lookup failed", "pid", pid, "error", err)
	}

	disp, err = ctl.QueryInterface(wca.IID_ISimpleAudioVolume)
	if err != nil {
		return Session{}, false
	}
	vol := (*wca.ISimpleAudioVolume)(unsafe.Pointer(disp))

	var level float32
	if err := vol.GetMasterVolume(&level); err != nil {
		vol.Release()
		return Session{}, false
	}
	b.volumes[id] = vol
	return Session{ID: id, PID: pid, Process: name, Volume: level}, true
}

func (b *wasapiBackend) releaseVolumes() {
	for id, vol := range b.volumes {
		vol.Release()
		delete(b.volumes, id)
	}
}
