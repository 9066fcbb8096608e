package records

import (
	"fmt"
	"strconv"
	"strings"
)

// RID addresses a record by the page holding it and its slot in that page
type RID struct {
	PageNo int32
	SlotNo int32
}

// NullRID means "no current record"
var NullRID = RID{PageNo: -1, SlotNo: -1}

func (r RID) IsNull() bool {
	return r == NullRID
}

func (r RID) String() string {
	return fmt.Sprintf("%d.%d", r.PageNo, r.SlotNo)
}

// ParseRID reads the "page.slot" form produced by String
func ParseRID(s string) (RID, error) {
	page, slot, ok := strings.Cut(strings.TrimSpace(s), ".")
	if !ok {
		return NullRID, fmt.Errorf("%w: %q", ErrBadRID, s)
	}
	pageNo, err := strconv.ParseInt(page, 10, 32)
	if err != nil || int32(pageNo) <= HeaderPageNo {
		return NullRID, fmt.Errorf("%w: %q", ErrBadRID, s)
	}
	slotNo, err := strconv.ParseInt(slot, 10, 32)
	if err != nil || slotNo < 0 {
		return NullRID, fmt.Errorf("%w: %q", ErrBadRID, s)
	}
	return RID{PageNo: int32(pageNo), SlotNo: int32(slotNo)}, nil
}

// Record is an opaque run of bytes, only the caller knows its layout
type Record []byte
