// Package group establishes and releases a process's membership in the
// process group it was launched into.
//
// A member learns its rank and the group size from the environment its
// launcher prepared (OpenMPI, PMI, Slurm, torchrun or the bundled
// time-offset launcher). Membership is held as a *Handle, a scoped resource
// that must be finalized exactly once before the process exits. Scope wraps
// acquire, use and release so that release happens on every path, including
// errors and panics in the body.
//
// When the bundled launcher is used, Init joins the launcher's rendezvous
// service and Finalize leaves it, which lets the launcher verify that every
// member released its membership.
package group
