package diag

import "fmt"

// Code identifies a diagnostic category. Numeric ranges group codes by the
// producing stage: 2xxx control flow, 3xxx ownership, 4xxx I/O, 6xxx
// observability.
type Code uint16

const (
	UnknownCode Code = 0

	// Control-flow findings. Dead code is the only advisory finding the
	// verifier produces; everything in the 3xxx range is a hard rejection.
	FlowInfo     Code = 2000
	FlowDeadCode Code = 2001

	// Ownership and borrow violations. These five are the complete set of
	// user-facing rejections; malformed IR is a contract violation and
	// surfaces as an error, not a diagnostic.
	OwnInfo              Code = 3000
	OwnUseAfterMove      Code = 3001
	OwnUseOfUninit       Code = 3002
	OwnConflictingBorrow Code = 3003
	OwnUseWhileBorrowed  Code = 3004
	OwnDanglingReference Code = 3005

	// I/O errors (CLI level only).
	IOLoadFileError Code = 4001

	// Observability.
	ObsInfo    Code = 6000
	ObsTimings Code = 6001
)

var codeDescription = map[Code]string{
	UnknownCode:          "Unknown error",
	FlowInfo:             "Control flow information",
	FlowDeadCode:         "Unreachable code",
	OwnInfo:              "Ownership information",
	OwnUseAfterMove:      "Use of moved value",
	OwnUseOfUninit:       "Use of uninitialized value",
	OwnConflictingBorrow: "Conflicting borrow",
	OwnUseWhileBorrowed:  "Use of borrowed value",
	OwnDanglingReference: "Reference outlives its referent",
	IOLoadFileError:      "I/O load file error",
	ObsInfo:              "Observability information",
	ObsTimings:           "Pipeline timings",
}

func (c Code) ID() string {
	switch ic := int(c); {
	case ic >= 2000 && ic < 3000:
		return fmt.Sprintf("FLW%04d", ic)
	case ic >= 3000 && ic < 4000:
		return fmt.Sprintf("OWN%04d", ic)
	case ic >= 4000 && ic < 5000:
		return fmt.Sprintf("IO%04d", ic)
	case ic >= 6000 && ic < 7000:
		return fmt.Sprintf("OBS%04d", ic)
	}
	return "E0000"
}

func (c Code) Title() string {
	desc, ok := codeDescription[c]
	if !ok {
		return codeDescription[UnknownCode]
	}
	return desc
}

func (c Code) String() string {
	return fmt.Sprintf("[%s]: %s", c.ID(), c.Title())
}
