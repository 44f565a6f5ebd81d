package unprotect

const (
	securityEventChainTooLong        = "chain_too_long"
	securityEventReservedAddress     = "reserved_address"
	securityEventPrivateAddress      = "private_address"
	securityEventMalformedForwarded  = "malformed_forwarded"
	securityEventMalformedRangeEntry = "malformed_range_entry"
)
