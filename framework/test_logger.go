package framework

type TestLogger interface {
	TestStarted(id CaseID)
	TestError(id CaseID, err error)
	TestFinished(id CaseID, failed bool, debugOutput CapturedOutput)
	TestSkipped(id CaseID, reason string)
}

type nullTestLogger struct{}

func (n nullTestLogger) TestStarted(CaseID)                        {}
func (n nullTestLogger) TestError(CaseID, error)                   {}
func (n nullTestLogger) TestFinished(CaseID, bool, CapturedOutput) {}
func (n nullTestLogger) TestSkipped(CaseID, string)                {}

type multiTestLogger []TestLogger

// MultiTestLogger fans every event out to each of the given loggers in order.
func MultiTestLogger(loggers ...TestLogger) TestLogger {
	var m multiTestLogger
	for _, l := range loggers {
		if l != nil {
			m = append(m, l)
		}
	}
	return m
}

func (m multiTestLogger) TestStarted(id CaseID) {
	for _, l := range m {
		l.TestStarted(id)
	}
}

func (m multiTestLogger) TestError(id CaseID, err error) {
	for _, l := range m {
		l.TestError(id, err)
	}
}

func (m multiTestLogger) TestFinished(id CaseID, failed bool, debugOutput CapturedOutput) {
	for _, l := range m {
		l.TestFinished(id, failed, debugOutput)
	}
}

func (m multiTestLogger) TestSkipped(id CaseID, reason string) {
	for _, l := range m {
		l.TestSkipped(id, reason)
	}
}
