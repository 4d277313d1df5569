package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
	"github.com/shinyyama/campus-exchange/internal/config"
	"github.com/shinyyama/campus-exchange/internal/db"
	"github.com/shinyyama/campus-exchange/internal/gcp"
	appmw "github.com/shinyyama/campus-exchange/internal/middleware"
	"github.com/shinyyama/campus-exchange/internal/model"
	"github.com/shinyyama/campus-exchange/internal/repository"
	"github.com/shinyyama/campus-exchange/internal/service"
	"github.com/shinyyama/campus-exchange/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type seedConfig struct {
	ForceSeed      bool `env:"FORCE_SEED" envDefault:"false"`
	UploadImages   bool `env:"SEED_UPLOAD_IMAGES" envDefault:"false"`
	TimeoutSeconds int  `env:"TIMEOUT_SECONDS" envDefault:"300"`
}

type seedUser struct {
	UID   string
	Email string
	Name  string
}

type seedListing struct {
	Seller      string
	Title       string
	Description string
	Price       int64
	Category    model.Category
	Location    model.CampusLocation
}

type seedRequest struct {
	Requester   string
	Title       string
	Description string
	Budget      int64
	Category    model.Category
	Location    model.CampusLocation
}

var users = []seedUser{
	{UID: "demo-asha", Email: "asha@iitb.ac.in", Name: "Asha Verma"},
	{UID: "demo-ravi", Email: "ravi@iitb.ac.in", Name: "Ravi Kumar"},
	{UID: "demo-meera", Email: "meera@bits-pilani.ac.in", Name: "Meera Nair"},
	{UID: "demo-sam", Email: "sam@stanford.edu", Name: "Sam Lee"},
}

var listings = []seedListing{
	{"demo-asha", "Engineering Mathematics (B.S. Grewal)", "43rd edition, a few pencil notes in chapter 3.", 350, model.CategoryBooks, model.LocationLibrary},
	{"demo-asha", "Hercules cycle with lock", "Used for two semesters, new brake pads.", 2800, model.CategoryCycles, model.LocationMainGate},
	{"demo-ravi", "Casio fx-991EX calculator", "Allowed in exams, comes with cover.", 900, model.CategoryElectronics, model.LocationDepartment},
	{"demo-ravi", "Study table lamp", "LED, three brightness levels.", 450, model.CategoryHostelItems, model.LocationHostel},
	{"demo-meera", "Arduino Uno starter kit", "Breadboard, jumpers and sensors included.", 1200, model.CategoryElectronics, model.LocationDepartment},
	{"demo-meera", "Mattress topper (single)", "Washed, moving out of hostel.", 700, model.CategoryHostelItems, model.LocationHostel},
	{"demo-sam", "Introduction to Algorithms (CLRS)", "Third edition, hardcover.", 1500, model.CategoryBooks, model.LocationLibrary},
	{"demo-sam", "Electric kettle", "1.5L, works fine.", 500, model.CategoryHostelItems, model.LocationCanteen},
}

var requests = []seedRequest{
	{"demo-ravi", "Need a drafter for ED lab", "Mini drafter, any brand.", 400, model.CategoryHostelItems, model.LocationDepartment},
	{"demo-asha", "Looking for a second-hand monitor", "22 inch or larger, HDMI.", 4000, model.CategoryElectronics, model.LocationHostel},
	{"demo-sam", "Physics by H.C. Verma vol 1", "Any edition works.", 250, model.CategoryBooks, model.LocationLibrary},
}

func main() {
	if err := run(); err != nil {
		logrus.WithError(err).Fatal("seed failed")
	}
}

func run() error {
	_ = godotenv.Load()

	var sc seedConfig
	if err := env.Parse(&sc); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(sc.TimeoutSeconds)*time.Second)
	defer cancel()

	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Profile{}).Count(&cnt).Error; err != nil {
		return fmt.Errorf("count profiles: %w", err)
	}
	if cnt > 0 && !sc.ForceSeed {
		logrus.Info("profiles already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}
	if sc.ForceSeed {
		if err := truncateAll(ctx, gdb); err != nil {
			return err
		}
	}

	var uploader *storage.Uploader
	if sc.UploadImages && cfg.StorageBucket != "" {
		opts, err := gcp.ClientOptions(ctx, cfg.GoogleCredentialsJSON, cfg.GoogleCredentialsFile)
		if err != nil {
			return err
		}
		if uploader, err = storage.NewUploader(ctx, cfg.StorageBucket, opts...); err != nil {
			return err
		}
		defer uploader.Close()
	}

	profileRepo := repository.NewProfileRepository(gdb)
	matchRepo := repository.NewMatchRepository(gdb)
	notifier := service.NewNotificationService(repository.NewNotificationRepository(gdb), nil, nil)
	listingSvc := service.NewListingService(repository.NewListingRepository(gdb), profileRepo, matchRepo, nil)
	chatSvc := service.NewChatService(repository.NewMessageRepository(gdb), matchRepo, profileRepo, notifier, nil, nil)
	requestSvc := service.NewNeedRequestService(repository.NewNeedRequestRepository(gdb), profileRepo, matchRepo, chatSvc, notifier, time.Duration(cfg.RequestTTLHours)*time.Hour)

	for _, u := range users {
		domain, ok := service.CollegeDomain(u.Email)
		if !ok {
			return fmt.Errorf("seed user %s has no college email", u.UID)
		}
		p := &model.Profile{UID: u.UID, Email: u.Email, Name: u.Name, CollegeDomain: domain}
		if err := profileRepo.Create(ctx, p); err != nil {
			return fmt.Errorf("create profile %s: %w", u.UID, err)
		}
	}

	for i, l := range listings {
		image, err := listingImage(ctx, uploader, l.Seller, i+1)
		if err != nil {
			return err
		}
		if _, err := listingSvc.Create(ctx, l.Seller, service.ListingInput{
			Title:       l.Title,
			Description: l.Description,
			Price:       l.Price,
			Category:    l.Category,
			Location:    l.Location,
			Images:      []string{image},
		}); err != nil {
			return fmt.Errorf("create listing %q: %w", l.Title, err)
		}
	}

	for _, r := range requests {
		if _, err := requestSvc.Create(ctx, r.Requester, service.NeedRequestInput{
			Title:             r.Title,
			Description:       r.Description,
			MaxBudget:         r.Budget,
			Category:          r.Category,
			PreferredLocation: r.Location,
		}); err != nil {
			return fmt.Errorf("create request %q: %w", r.Title, err)
		}
	}

	logrus.WithFields(logrus.Fields{
		"profiles": len(users),
		"listings": len(listings),
		"requests": len(requests),
	}).Info("seeded demo data")

	if cfg.AuthMode == "jwt" {
		printDevTokens(cfg.JWTSecret)
	}
	return nil
}

func truncateAll(ctx context.Context, gdb *gorm.DB) error {
	all := model.All()
	tx := gdb.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clear %T: %w", all[i], err)
		}
	}
	return nil
}

// listingImage returns a picsum placeholder URL, or copies the placeholder into
// the bucket when an uploader is configured.
func listingImage(ctx context.Context, uploader *storage.Uploader, uid string, idx int) (string, error) {
	src := picsumURL(uid, idx)
	if uploader == nil {
		return src, nil
	}
	data, err := fetchPlaceholder(ctx, src)
	if err != nil {
		logrus.WithError(err).WithField("src", src).Warn("placeholder fetch failed; keeping remote url")
		return src, nil
	}
	contentType := http.DetectContentType(data)
	path, err := storage.ListingImagePath(uid, contentType)
	if err != nil {
		return src, nil
	}
	return uploader.Put(ctx, path, contentType, data)
}

func picsumURL(uid string, idx int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d/600/600", url.PathEscape(uid), idx)
}

func fetchPlaceholder(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("placeholder status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 5<<20))
}

func printDevTokens(secret string) {
	v, err := appmw.NewJWTVerifier(secret)
	if err != nil {
		logrus.WithError(err).Warn("cannot issue dev tokens")
		return
	}
	for _, u := range users {
		tok, err := v.Issue(u.UID, u.Email, 7*24*time.Hour)
		if err != nil {
			logrus.WithError(err).Warn("issue token")
			continue
		}
		fmt.Printf("%s\t%s\n", u.UID, tok)
	}
}
