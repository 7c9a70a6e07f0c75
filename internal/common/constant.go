package common

// OwnerTokenHeaderName is the HTTP header carrying the owner token on
// owner-initiated requests (force burn, expiry extension, audit log).
const OwnerTokenHeaderName = "X-Owner-Token"
