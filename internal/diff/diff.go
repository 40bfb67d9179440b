// Package diff implements the two-stream diffing state machine of spec
// §4.3: given a master and a slave message sequence for the same logical
// chat, it emits an ordered, gap-free partitioning of both sides into
// Match/Retain/Add/Replace segments.
package diff

import (
	"context"
	"fmt"
	"iter"

	"github.com/frozenspider/chat-history-manager-backend/internal/mergeerr"
	"github.com/frozenspider/chat-history-manager-backend/model"
)

// Label tags a Segment with which kind of diff it represents.
type Label int

const (
	Match Label = iota
	Retain
	Add
	Replace
)

func (l Label) String() string {
	switch l {
	case Match:
		return "Match"
	case Retain:
		return "Retain"
	case Add:
		return "Add"
	case Replace:
		return "Replace"
	default:
		return fmt.Sprintf("Label(%d)", int(l))
	}
}

// Segment is one emitted diff unit. FirstMaster/LastMaster are nil for a
// pure Add segment; FirstSlave/LastSlave are nil for a pure Retain segment.
type Segment struct {
	Label                                        Label
	FirstMaster, LastMaster, FirstSlave, LastSlave *model.Message
}

// groupMigrateFromWidenBoundary is the from_id threshold Telegram's 2020-10
// user-id widening crossed (spec §4.3 rule 3).
const groupMigrateFromWidenBoundary = model.UserID(1) << 32

// Diff runs the state machine over master and slave, lazily emitting
// segments as the two streams are consumed. masterRoot/slaveRoot are the
// dataset roots the respective messages' file paths resolve against.
func Diff(
	ctx context.Context,
	chatID model.ChatID,
	fc model.FileComparator,
	masterRoot string,
	master iter.Seq2[model.Message, error],
	slaveRoot string,
	slave iter.Seq2[model.Message, error],
) iter.Seq2[Segment, error] {
	return func(yield func(Segment, error) bool) {
		nextM, stopM := iter.Pull2(master)
		defer stopM()
		nextS, stopS := iter.Pull2(slave)
		defer stopS()

		e := &engine{
			chatID:         chatID,
			fc:             fc,
			masterRoot:     masterRoot,
			slaveRoot:      slaveRoot,
			nextM:          nextM,
			nextS:          nextS,
			yield:          yield,
			seenSourceIDsM: make(map[model.SourceID]bool),
			seenSourceIDsS: make(map[model.SourceID]bool),
		}
		e.run(ctx)
	}
}

type state int

const (
	stateNone state = iota
	stateMatch
	stateRetention
	stateAddition
	stateConflict
)

type engine struct {
	chatID     model.ChatID
	fc         model.FileComparator
	masterRoot string
	slaveRoot  string
	nextM      func() (model.Message, error, bool)
	nextS      func() (model.Message, error, bool)
	yield      func(Segment, error) bool

	curM, curS     model.Message
	okM, okS       bool
	state          state
	firstM, lastM  *model.Message
	firstS, lastS  *model.Message

	seenSourceIDsM map[model.SourceID]bool
	seenSourceIDsS map[model.SourceID]bool
}

func pull(next func() (model.Message, error, bool)) (model.Message, bool, error) {
	m, err, ok := next()
	if !ok {
		return model.Message{}, false, nil
	}
	if err != nil {
		return model.Message{}, false, err
	}
	return m, true, nil
}

func (e *engine) fail(err error) {
	e.yield(Segment{}, err)
}

func (e *engine) emit(label Label) bool {
	return e.yield(Segment{Label: label, FirstMaster: e.firstM, LastMaster: e.lastM, FirstSlave: e.firstS, LastSlave: e.lastS}, nil)
}

func (e *engine) resetSides() {
	e.firstM, e.lastM, e.firstS, e.lastS = nil, nil, nil, nil
}

// checkDuplicate fails with a data-integrity error if m's source id was
// already seen on this side of the stream (spec §7's "duplicate source_id
// within a chat" fatal case), else records it.
func (e *engine) checkDuplicate(seen map[model.SourceID]bool, m model.Message) error {
	if m.SourceID == nil {
		return nil
	}
	if seen[*m.SourceID] {
		return mergeerr.NewDataIntegrityError(e.chatID, "duplicate source_id %d", *m.SourceID)
	}
	seen[*m.SourceID] = true
	return nil
}

func (e *engine) run(ctx context.Context) {
	var err error
	if e.curM, e.okM, err = pull(e.nextM); err != nil {
		e.fail(err)
		return
	}
	if e.okM {
		if err := e.checkDuplicate(e.seenSourceIDsM, e.curM); err != nil {
			e.fail(err)
			return
		}
	}
	if e.curS, e.okS, err = pull(e.nextS); err != nil {
		e.fail(err)
		return
	}
	if e.okS {
		if err := e.checkDuplicate(e.seenSourceIDsS, e.curS); err != nil {
			e.fail(err)
			return
		}
	}

	for {
		if err := ctx.Err(); err != nil {
			e.fail(fmt.Errorf("%w: %w", mergeerr.ErrCancelled, err))
			return
		}

		if !e.okM && !e.okS {
			if e.state != stateNone && !e.emit(labelFor(e.state)) {
				return
			}
			return
		}

		var advance bool
		switch e.state {
		case stateNone:
			advance = e.stepNone()
		case stateMatch:
			advance = e.stepMatch()
		case stateRetention:
			advance = e.stepRetention()
		case stateAddition:
			advance = e.stepAddition()
		case stateConflict:
			advance = e.stepConflict()
		}
		if !advance {
			return
		}
	}
}

func labelFor(s state) Label {
	switch s {
	case stateMatch:
		return Match
	case stateRetention:
		return Retain
	case stateAddition:
		return Add
	case stateConflict:
		return Replace
	default:
		panic("labelFor: not an in-progress state")
	}
}

// stepNone handles NoState (rules 2-6), returning false to stop the run.
func (e *engine) stepNone() bool {
	if e.okM && !e.okS {
		m := e.curM
		e.firstM, e.lastM, e.firstS, e.lastS = &m, &m, nil, nil
		e.state = stateRetention
		return e.advanceMaster()
	}
	if !e.okM && e.okS {
		s := e.curS
		e.firstM, e.lastM, e.firstS, e.lastS = nil, nil, &s, &s
		e.state = stateAddition
		return e.advanceSlave()
	}

	// both present
	if handled, ok := e.tryGroupMigrateFromWiden(); !ok {
		return false
	} else if handled {
		return true
	}

	eq, err := model.ContentAwareEqualMessages(e.fc, e.curM, e.masterRoot, e.curS, e.slaveRoot)
	if err != nil {
		e.fail(err)
		return false
	}
	if eq {
		m, s := e.curM, e.curS
		e.firstM, e.lastM, e.firstS, e.lastS = &m, &m, &s, &s
		e.state = stateMatch
		return e.advanceBoth()
	}

	if e.curM.SourceID != nil && e.curS.SourceID != nil && *e.curM.SourceID == *e.curS.SourceID {
		shifted := e.curM
		shifted.Timestamp = e.curS.Timestamp
		shiftEq, err := model.PracticalEqualMessages(e.fc, shifted, e.masterRoot, e.curS, e.slaveRoot)
		if err != nil {
			e.fail(err)
			return false
		}
		if shiftEq {
			shiftSeconds := int64(e.curS.Timestamp.Sub(e.curM.Timestamp).Seconds())
			e.fail(mergeerr.NewTimeShiftError(e.chatID, shiftSeconds))
			return false
		}
		m, s := e.curM, e.curS
		e.firstM, e.lastM, e.firstS, e.lastS = &m, &m, &s, &s
		e.state = stateConflict
		return e.advanceBoth()
	}

	c, err := cmp(e.chatID, e.curM, e.curS)
	if err != nil {
		e.fail(err)
		return false
	}
	switch {
	case c > 0:
		s := e.curS
		e.firstM, e.lastM, e.firstS, e.lastS = nil, nil, &s, &s
		e.state = stateAddition
		return e.advanceSlave()
	case c < 0:
		m := e.curM
		e.firstM, e.lastM, e.firstS, e.lastS = &m, &m, nil, nil
		e.state = stateRetention
		return e.advanceMaster()
	default:
		// cmp==0 (same order key) without matching content-aware equality
		// and without a shared source_id: genuinely conflicting messages
		// that happen to sort equal. Treat like rule 4's conflict branch.
		m, s := e.curM, e.curS
		e.firstM, e.lastM, e.firstS, e.lastS = &m, &m, &s, &s
		e.state = stateConflict
		return e.advanceBoth()
	}
}

// tryGroupMigrateFromWiden implements rule 3. ok is false if a fatal error
// was reported (caller should stop); handled is true if the special case
// fired and a Replace segment was emitted in-place.
func (e *engine) tryGroupMigrateFromWiden() (handled, ok bool) {
	mSvc, isM := asGroupMigrateFrom(e.curM)
	sSvc, isS := asGroupMigrateFrom(e.curS)
	if !isM || !isS {
		return false, true
	}
	if e.curM.SourceID == nil || e.curS.SourceID == nil || *e.curM.SourceID != *e.curS.SourceID {
		return false, true
	}
	if e.curM.FromID >= groupMigrateFromWidenBoundary || e.curS.FromID < groupMigrateFromWidenBoundary {
		return false, true
	}
	widened := e.curM
	widened.FromID = e.curS.FromID
	eq, err := model.PracticalEqualMessages(e.fc, widened, e.masterRoot, e.curS, e.slaveRoot)
	if err != nil {
		e.fail(err)
		return false, false
	}
	if !eq {
		return false, true
	}
	_ = mSvc
	_ = sSvc
	m, s := e.curM, e.curS
	if !e.yield(Segment{Label: Replace, FirstMaster: &m, LastMaster: &m, FirstSlave: &s, LastSlave: &s}, nil) {
		return true, false
	}
	return true, e.advanceBoth()
}

func asGroupMigrateFrom(m model.Message) (model.ServiceGroupMigrateFrom, bool) {
	ts, ok := m.Typed.(model.TypedService)
	if !ok {
		return model.ServiceGroupMigrateFrom{}, false
	}
	mf, ok := ts.Content.(model.ServiceGroupMigrateFrom)
	return mf, ok
}

// stepMatch implements rule 8.
func (e *engine) stepMatch() bool {
	if e.okM && e.okS {
		eq, err := model.ContentAwareEqualMessages(e.fc, e.curM, e.masterRoot, e.curS, e.slaveRoot)
		if err != nil {
			e.fail(err)
			return false
		}
		if eq {
			m, s := e.curM, e.curS
			e.lastM, e.lastS = &m, &s
			return e.advanceBoth()
		}
	}
	if !e.emit(Match) {
		return false
	}
	e.state = stateNone
	e.resetSides()
	return true
}

// stepRetention implements rule 9.
func (e *engine) stepRetention() bool {
	stay := e.okM
	if stay && e.okS {
		c, err := cmp(e.chatID, e.curM, e.curS)
		if err != nil {
			e.fail(err)
			return false
		}
		stay = c < 0
	}
	if stay {
		m := e.curM
		e.lastM = &m
		return e.advanceMaster()
	}
	if !e.emit(Retain) {
		return false
	}
	e.state = stateNone
	e.resetSides()
	return true
}

// stepAddition implements rule 7.
func (e *engine) stepAddition() bool {
	stay := e.okS
	if stay && e.okM {
		c, err := cmp(e.chatID, e.curM, e.curS)
		if err != nil {
			e.fail(err)
			return false
		}
		stay = c > 0
	}
	if stay {
		s := e.curS
		e.lastS = &s
		return e.advanceSlave()
	}
	if !e.emit(Add) {
		return false
	}
	e.state = stateNone
	e.resetSides()
	return true
}

// stepConflict implements rule 10.
func (e *engine) stepConflict() bool {
	if e.okM && e.okS {
		eq, err := model.PracticalEqualMessages(e.fc, e.curM, e.masterRoot, e.curS, e.slaveRoot)
		if err != nil {
			e.fail(err)
			return false
		}
		if !eq {
			m, s := e.curM, e.curS
			e.lastM, e.lastS = &m, &s
			return e.advanceBoth()
		}
	}
	if !e.emit(Replace) {
		return false
	}
	e.state = stateNone
	e.resetSides()
	return true
}

func (e *engine) advanceMaster() bool {
	var err error
	if e.curM, e.okM, err = pull(e.nextM); err != nil {
		e.fail(err)
		return false
	}
	if e.okM {
		if err := e.checkDuplicate(e.seenSourceIDsM, e.curM); err != nil {
			e.fail(err)
			return false
		}
	}
	return true
}

func (e *engine) advanceSlave() bool {
	var err error
	if e.curS, e.okS, err = pull(e.nextS); err != nil {
		e.fail(err)
		return false
	}
	if e.okS {
		if err := e.checkDuplicate(e.seenSourceIDsS, e.curS); err != nil {
			e.fail(err)
			return false
		}
	}
	return true
}

func (e *engine) advanceBoth() bool {
	return e.advanceMaster() && e.advanceSlave()
}

// cmp implements spec §4.3's comparison function: timestamps first, then
// source ids when both sides carry one, then an exact searchable-string
// match as a last resort; anything else is a data-integrity error.
func cmp(chatID model.ChatID, m, s model.Message) (int, error) {
	if m.Timestamp.Before(s.Timestamp) {
		return -1, nil
	}
	if m.Timestamp.After(s.Timestamp) {
		return 1, nil
	}
	if m.SourceID != nil && s.SourceID != nil {
		switch {
		case *m.SourceID < *s.SourceID:
			return -1, nil
		case *m.SourceID > *s.SourceID:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if m.SearchableString == s.SearchableString {
		return 0, nil
	}
	return 0, mergeerr.NewDataIntegrityError(chatID,
		"ambiguous ordering at t=%s: %q vs %q", m.Timestamp, m.SearchableString, s.SearchableString)
}
