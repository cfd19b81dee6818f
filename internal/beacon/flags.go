package beacon

// Flags is the beacon's bitmask of page-view conditions.
type Flags uint32

const (
	FlagInitCalled Flags = 1 << iota
	FlagNoNavTiming
	FlagNoPaintTiming
	FlagVisibilityStateNotVisible
	FlagBeaconSentAfterTimeout
	FlagPageLabelFromLabelProp
	FlagPageLabelFromLabelFunc
	FlagPageLabelFromDefault
	FlagPageWasPrerendered
	FlagPageWasBfcacheRestored
	FlagBeaconBlockedByCsp
	FlagSoftNavigation
)

// Set returns f with flag turned on.
func (f Flags) Set(flag Flags) Flags { return f | flag }

// Has reports whether flag is on.
func (f Flags) Has(flag Flags) bool { return f&flag != 0 }
