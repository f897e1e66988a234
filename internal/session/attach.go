package session

import (
	"github.com/ixrcore/runtime/internal/action"
	"github.com/ixrcore/runtime/internal/event"
	"github.com/ixrcore/runtime/internal/xrtypes"
)

// AttachActionSets implements spec.md section 4.E phase 2's
// attachSessionActionSets: freezes sets forever against this session,
// scores and selects an interaction profile per currently-assigned device,
// and pushes one InteractionProfileChanged event per sub-action path whose
// profile selection changed.
func (s *Session) AttachActionSets(sets []*action.ActionSet) error {
	changes, err := s.attachment.Attach(sets, s.deviceAssignments())
	if err != nil {
		return err
	}
	for range changes {
		s.pushEvent(event.Event{Kind: event.InteractionProfileChanged, Time: now(), Session: s})
	}
	return nil
}

// deviceAssignments builds the current top-level-user-path to device-name
// table the attach phase scores candidate profiles against.
func (s *Session) deviceAssignments() []action.DeviceAssignment {
	var out []action.DeviceAssignment
	if head, ok := s.sys.HeadDevice(); ok {
		out = append(out, action.DeviceAssignment{SubActionPath: xrtypes.SubActionHead, DeviceName: head.Name()})
	}
	for _, sub := range []xrtypes.SubActionPath{xrtypes.SubActionLeft, xrtypes.SubActionRight, xrtypes.SubActionGamepad} {
		if dev, ok := s.sys.RoleDevice(sub); ok {
			out = append(out, action.DeviceAssignment{SubActionPath: sub, DeviceName: dev.Name()})
		}
	}
	return out
}
