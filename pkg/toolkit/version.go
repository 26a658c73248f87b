package toolkit

// Version is stamped into every manifest. Reports written by an
// incompatible toolkit major version are flagged by `opskit verify`.
const Version = "1.4.0"

// CompatConstraint is the semver range of report-producing toolkit versions
// the current binary knows how to verify.
const CompatConstraint = ">=1.0.0 <2.0.0"
