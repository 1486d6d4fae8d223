package zerofabric

import "github.com/sirupsen/logrus"

// log is the package-wide logger. Recoverable anomalies (stale
// artifacts, inconsistent UUIDs, a vanished peer) are logged at Warn;
// structural failures (cannot open required storage) are returned as
// errors and not logged.
var log = logrus.New()

// SetLogger replaces the package-wide logger, e.g. to route output
// through an application's own logrus instance.
func SetLogger(l *logrus.Logger) {
	if l != nil {
		log = l
	}
}
