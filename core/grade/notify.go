package grade

import (
	"context"
	"fmt"
	"net/mail"

	"github.com/kampuslab/kampus/core"
	"github.com/kampuslab/kampus/core/course"
	"github.com/kampuslab/kampus/core/user"
)

const finalGradeTemplate = "final_grade"

// MailNotifier emails students whenever their final letter grade changes.
type MailNotifier struct {
	usrRepo user.Repository
	crsRepo course.Repository
	mailSvc core.EmailService
	logger  core.Logger
}

var _ Listener = (*MailNotifier)(nil)

func NewMailNotifier(usrRepo user.Repository, crsRepo course.Repository, mailSvc core.EmailService, logger core.Logger) *MailNotifier {
	return &MailNotifier{
		usrRepo: usrRepo,
		crsRepo: crsRepo,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

type finalGradeMailData struct {
	StudentName    string
	CourseCode     string
	CourseName     string
	Letter         string
	Total          string
	PreviousLetter string
}

func (n *MailNotifier) FinalGradeChanged(ctx context.Context, change Change) {
	if !change.LetterChanged() {
		return
	}
	fg := change.Current

	usr, err := n.usrRepo.GetUser(ctx, user.GetFilter{ID: fg.StudentID})
	if err != nil {
		n.logger.Error(fmt.Sprintf("final grade mail: finding student %s: %v", fg.StudentID, err), err)
		return
	}
	crs, err := n.crsRepo.GetCourse(ctx, course.GetFilter{ID: fg.CourseID})
	if err != nil {
		n.logger.Error(fmt.Sprintf("final grade mail: finding course %s: %v", fg.CourseID, err), err)
		return
	}

	data := finalGradeMailData{
		StudentName: usr.Name,
		CourseCode:  crs.Code,
		CourseName:  crs.Name,
		Letter:      fg.Letter.String,
		Total:       fg.Total.Decimal.StringFixed(TotalPlaces),
	}
	if change.Previous != nil {
		data.PreviousLetter = change.Previous.Letter.String
	}

	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      fmt.Sprintf("Final grade for %s", crs.Code),
		TemplateName: finalGradeTemplate,
		TemplateData: data,
	})
}
